package repository

import (
	"context"
	"fmt"

	"familyregistry/internal/database"
	"familyregistry/internal/logger"
	"familyregistry/internal/models"
	"familyregistry/internal/retry"
)

const documentColumns = "id, family_id, type, file_name, file_path, created_at"

// DocumentRepository handles database operations for family documents. Only
// metadata is stored; the files themselves live elsewhere.
type DocumentRepository struct {
	store
}

func NewDocumentRepository(db database.DBTX, policy *retry.Policy, log *logger.Logger) *DocumentRepository {
	return &DocumentRepository{store: newStore(db, policy, log, "DocumentRepository")}
}

func (r *DocumentRepository) WithTx(tx *database.Tx) *DocumentRepository {
	return &DocumentRepository{store: r.store.withTx(tx)}
}

func scanDocument(row scanner) (*models.Document, error) {
	doc := &models.Document{}
	if err := row.Scan(&doc.ID, &doc.FamilyID, &doc.Type, &doc.FileName, &doc.FilePath, &doc.CreatedAt); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) GetDocumentByID(ctx context.Context, id int64) (*models.Document, error) {
	doc, err := getOne(ctx, r.store, scanDocument, "SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// ListDocuments retrieves every document in id order
func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]models.Document, error) {
	docs, err := getAll(ctx, r.store, scanDocument, "SELECT "+documentColumns+" FROM documents ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) ListDocumentsByFamilyID(ctx context.Context, familyID int64) ([]models.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents WHERE family_id = ? ORDER BY id"
	docs, err := getAll(ctx, r.store, scanDocument, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) CreateDocument(ctx context.Context, doc models.Document) (*models.Document, error) {
	doc.CreatedAt = now()
	query := "INSERT INTO documents (family_id, type, file_name, file_path, created_at) VALUES (?, ?, ?, ?, ?)"
	id, err := insert(ctx, r.store, query, doc.FamilyID, doc.Type, doc.FileName, doc.FilePath, doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	doc.ID = id
	return &doc, nil
}

func (r *DocumentRepository) UpdateDocument(ctx context.Context, id int64, patch models.DocumentPatch) (*models.Document, error) {
	var a assignments
	setIf(&a, "type", patch.Type)
	setIf(&a, "file_name", patch.FileName)
	setIf(&a, "file_path", patch.FilePath)
	if err := a.update(ctx, r.store, "documents", id); err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}
	return r.GetDocumentByID(ctx, id)
}

func (r *DocumentRepository) DeleteDocument(ctx context.Context, id int64) (bool, error) {
	n, err := exec(ctx, r.store, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}
	return n > 0, nil
}

// DeleteDocumentsByFamilyID removes every document of a family
func (r *DocumentRepository) DeleteDocumentsByFamilyID(ctx context.Context, familyID int64) (int64, error) {
	n, err := exec(ctx, r.store, "DELETE FROM documents WHERE family_id = ?", familyID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}
	return n, nil
}

func (r *DocumentRepository) ClearDocuments(ctx context.Context) error {
	if _, err := exec(ctx, r.store, "DELETE FROM documents"); err != nil {
		return fmt.Errorf("failed to clear documents: %w", err)
	}
	return nil
}

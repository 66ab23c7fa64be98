// Package milvus stores document chunk embeddings. Every chunk carries
// its owner's user id, and every search is filtered by it; the vector
// index is shared across tenants only at the storage level.
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/local-insights/backend/internal/tenant"
	"github.com/local-insights/backend/pkg/logger"
)

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

type DocumentChunk struct {
	ID         string
	Embedding  []float32
	Text       string
	DocumentID int64
	Filename   string
	ChunkIndex int64
}

type SearchResult struct {
	ChunkID    string
	Text       string
	DocumentID int64
	Filename   string
	ChunkIndex int64
	Score      float32
}

func NewClient(endpoint, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(
		context.Background(),
		endpoint,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) CreateCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Study document chunk embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "4096",
				},
			},
			{
				Name:     "user_id",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "document_id",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "filename",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "chunk_index",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

func (m *Client) Insert(ctx context.Context, tenantID tenant.ID, chunks []DocumentChunk) error {
	if err := tenant.Validate(tenantID); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	chunkIDs := make([]string, len(chunks))
	embeddings := make([][]float32, len(chunks))
	texts := make([]string, len(chunks))
	userIDs := make([]int64, len(chunks))
	documentIDs := make([]int64, len(chunks))
	filenames := make([]string, len(chunks))
	chunkIndexes := make([]int64, len(chunks))

	for i, chunk := range chunks {
		chunkIDs[i] = chunk.ID
		embeddings[i] = chunk.Embedding
		texts[i] = chunk.Text
		userIDs[i] = int64(tenantID)
		documentIDs[i] = chunk.DocumentID
		filenames[i] = chunk.Filename
		chunkIndexes[i] = chunk.ChunkIndex
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnInt64("user_id", userIDs),
		entity.NewColumnInt64("document_id", documentIDs),
		entity.NewColumnVarChar("filename", filenames),
		entity.NewColumnInt64("chunk_index", chunkIndexes),
	)

	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Chunks inserted into vector DB",
		zap.Int64("user_id", int64(tenantID)),
		zap.Int("count", len(chunks)))

	return nil
}

// Search returns the tenant's closest chunks to the query embedding.
// A non-zero documentID narrows the search to one document.
func (m *Client) Search(ctx context.Context, tenantID tenant.ID, queryEmbedding []float32, topK int, documentID int64) ([]SearchResult, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	expr := fmt.Sprintf("user_id == %d", int64(tenantID))
	if documentID > 0 {
		expr += fmt.Sprintf(" && document_id == %d", documentID)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		expr,
		[]string{"chunk_id", "text", "document_id", "filename", "chunk_index"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			chunkIDCol := sr.Fields.GetColumn("chunk_id")
			textCol := sr.Fields.GetColumn("text")
			documentIDCol := sr.Fields.GetColumn("document_id")
			filenameCol := sr.Fields.GetColumn("filename")
			chunkIndexCol := sr.Fields.GetColumn("chunk_index")

			chunkID, _ := chunkIDCol.Get(i)
			text, _ := textCol.Get(i)
			docID, _ := documentIDCol.Get(i)
			filename, _ := filenameCol.Get(i)
			chunkIndex, _ := chunkIndexCol.Get(i)

			results = append(results, SearchResult{
				ChunkID:    chunkID.(string),
				Text:       text.(string),
				DocumentID: docID.(int64),
				Filename:   filename.(string),
				ChunkIndex: chunkIndex.(int64),
				Score:      sr.Scores[i],
			})
		}
	}

	logger.Info("Vector search completed",
		zap.Int64("user_id", int64(tenantID)),
		zap.Int("topK", topK),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// DeleteByDocument removes a document's chunks when the document itself
// is deleted from the material store.
func (m *Client) DeleteByDocument(ctx context.Context, tenantID tenant.ID, documentID int64) error {
	if err := tenant.Validate(tenantID); err != nil {
		return err
	}

	expr := fmt.Sprintf("user_id == %d && document_id == %d", int64(tenantID), documentID)
	if err := m.client.Delete(ctx, m.collectionName, "", expr); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	logger.Info("Document chunks deleted from vector DB",
		zap.Int64("user_id", int64(tenantID)),
		zap.Int64("document_id", documentID),
	)

	return nil
}

package search

import (
	"encoding/json"
	"log"

	"github.com/meilisearch/meilisearch-go"
	"github.com/quypq/blogapi/internal/entity"
)

const postsIndex = "posts"

type PostDocument struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Author    string `json:"author"`
	CreatedAt int64  `json:"created_at"`
}

type SearchService interface {
	IndexPost(post *entity.Post) error
	DeletePost(id string) error
	SearchPosts(query string, limit int64) ([]PostDocument, error)
}

type meiliSearchService struct {
	client meilisearch.ServiceManager
}

func NewSearchService(client meilisearch.ServiceManager) SearchService {
	s := &meiliSearchService{client: client}
	s.initIndexes()
	return s
}

func (s *meiliSearchService) initIndexes() {
	sortableAttrs := []string{"created_at"}
	if _, err := s.client.Index(postsIndex).UpdateSortableAttributes(&sortableAttrs); err != nil {
		log.Printf("failed to update posts sortable attributes: %v", err)
	}
}

func (s *meiliSearchService) IndexPost(post *entity.Post) error {
	doc := PostDocument{
		ID:        post.ID.String(),
		Title:     post.Title,
		Content:   post.Content,
		Author:    post.Author.Username,
		CreatedAt: post.CreatedAt.Unix(),
	}

	_, err := s.client.Index(postsIndex).AddDocuments([]PostDocument{doc}, strPtr("id"))
	return err
}

func (s *meiliSearchService) DeletePost(id string) error {
	_, err := s.client.Index(postsIndex).DeleteDocument(id)
	return err
}

func (s *meiliSearchService) SearchPosts(query string, limit int64) ([]PostDocument, error) {
	if limit <= 0 {
		limit = 10
	}

	resp, err := s.client.Index(postsIndex).Search(query, &meilisearch.SearchRequest{
		Limit: limit,
	})
	if err != nil {
		return nil, err
	}

	docs := make([]PostDocument, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		raw, err := json.Marshal(hit)
		if err != nil {
			continue
		}
		var doc PostDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func strPtr(s string) *string {
	return &s
}

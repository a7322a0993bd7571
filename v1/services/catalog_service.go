package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/booklane/library-backend/v1/models"
)

// CopyFilter holds the optional catalog filters. Filters compose with AND;
// the free-text query matches title, author name or ISBN with OR.
type CopyFilter struct {
	Query      string
	CategoryID uint
	AuthorID   uint
	Status     models.CopyStatus
	Page       int
}

// CatalogService handles catalog entities and the copy list views
type CatalogService struct {
	db *gorm.DB
}

// NewCatalogService creates a new catalog service
func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

// ListCopies returns one page of the copy catalog. availableOnly forces the
// member-facing view to status=available regardless of the filter. Filtering
// is applied before pagination so page boundaries follow the filtered set.
func (s *CatalogService) ListCopies(ctx context.Context, filter CopyFilter, availableOnly bool) (*models.CatalogPage, error) {
	query := s.db.WithContext(ctx).Model(&models.BookCopy{}).
		Joins("JOIN books ON books.id = book_copies.book_id")

	if availableOnly {
		query = query.Where("book_copies.status = ?", models.CopyStatusAvailable)
	} else if filter.Status != "" {
		query = query.Where("book_copies.status = ?", filter.Status)
	}

	if filter.Query != "" {
		pattern := "%" + strings.ToLower(filter.Query) + "%"
		query = query.Where(
			`LOWER(books.title) LIKE ? OR LOWER(books.isbn) LIKE ? OR book_copies.book_id IN (
				SELECT ba.book_id FROM book_authors ba
				JOIN authors a ON a.id = ba.author_id
				WHERE LOWER(a.name) LIKE ?)`,
			pattern, pattern, pattern,
		)
	}

	if filter.CategoryID != 0 {
		query = query.Where("books.category_id = ?", filter.CategoryID)
	}

	if filter.AuthorID != 0 {
		query = query.Where(
			"book_copies.book_id IN (SELECT book_id FROM book_authors WHERE author_id = ?)",
			filter.AuthorID,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count copies: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	totalPages := int((total + models.CatalogPageSize - 1) / models.CatalogPageSize)

	var copies []models.BookCopy
	err := query.
		Preload("Book.Category").
		Preload("Book.Authors").
		Order("book_copies.id").
		Offset((page - 1) * models.CatalogPageSize).
		Limit(models.CatalogPageSize).
		Find(&copies).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list copies: %w", err)
	}

	items := make([]models.CopyView, 0, len(copies))
	for _, copy := range copies {
		authors := make([]string, 0, len(copy.Book.Authors))
		for _, author := range copy.Book.Authors {
			authors = append(authors, author.Name)
		}
		items = append(items, models.CopyView{
			CopyID:        copy.ID,
			Barcode:       copy.Barcode,
			ShelfLocation: copy.ShelfLocation,
			Status:        copy.Status,
			Condition:     copy.Condition,
			Title:         copy.Book.Title,
			ISBN:          copy.Book.ISBN,
			Category:      copy.Book.Category.Name,
			Authors:       authors,
		})
	}

	return &models.CatalogPage{
		Items:      items,
		Page:       page,
		PageSize:   models.CatalogPageSize,
		TotalPages: totalPages,
		TotalCount: total,
	}, nil
}

// CreateCategory creates a new category
func (s *CatalogService) CreateCategory(ctx context.Context, req *models.CreateCategoryRequest) (*models.Category, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("category name is required")
	}

	category := models.Category{Name: req.Name, Description: req.Description}
	if err := s.db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return &category, nil
}

// CreateAuthor creates a new author
func (s *CatalogService) CreateAuthor(ctx context.Context, req *models.CreateAuthorRequest) (*models.Author, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("author name is required")
	}

	author := models.Author{Name: req.Name, Bio: req.Bio, DateOfBirth: req.DateOfBirth}
	if err := s.db.WithContext(ctx).Create(&author).Error; err != nil {
		return nil, fmt.Errorf("failed to create author: %w", err)
	}
	return &author, nil
}

// CreateBook creates a new title with its category and author associations
func (s *CatalogService) CreateBook(ctx context.Context, req *models.CreateBookRequest) (*models.Book, error) {
	if req.Title == "" || req.ISBN == "" {
		return nil, fmt.Errorf("title and isbn are required")
	}
	if req.CategoryID == 0 {
		return nil, fmt.Errorf("category is required")
	}

	var authors []models.Author
	if len(req.AuthorIDs) > 0 {
		if err := s.db.WithContext(ctx).Find(&authors, req.AuthorIDs).Error; err != nil {
			return nil, fmt.Errorf("failed to load authors: %w", err)
		}
		if len(authors) != len(req.AuthorIDs) {
			return nil, fmt.Errorf("unknown author id in request")
		}
	}

	book := models.Book{
		Title:           req.Title,
		ISBN:            req.ISBN,
		CategoryID:      req.CategoryID,
		Publisher:       req.Publisher,
		PublicationYear: req.PublicationYear,
		Language:        req.Language,
		Description:     req.Description,
		Authors:         authors,
	}
	if err := s.db.WithContext(ctx).Create(&book).Error; err != nil {
		return nil, fmt.Errorf("failed to create book: %w", err)
	}
	return &book, nil
}

// CreateCopy creates a new physical copy. New copies always start available.
func (s *CatalogService) CreateCopy(ctx context.Context, req *models.CreateCopyRequest) (*models.BookCopy, error) {
	if req.BookID == 0 || req.Barcode == "" {
		return nil, fmt.Errorf("book and barcode are required")
	}

	condition := req.Condition
	if condition == "" {
		condition = models.CopyConditionGood
	}
	if !condition.IsValid() {
		return nil, fmt.Errorf("invalid copy condition: %s", condition)
	}

	copy := models.BookCopy{
		BookID:        req.BookID,
		Barcode:       req.Barcode,
		ShelfLocation: req.ShelfLocation,
		Status:        models.CopyStatusAvailable,
		Condition:     condition,
		AddedAt:       models.Today(time.Now()),
	}
	if err := s.db.WithContext(ctx).Create(&copy).Error; err != nil {
		return nil, fmt.Errorf("failed to create copy: %w", err)
	}
	return &copy, nil
}

// ListCategories returns all categories
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := s.db.WithContext(ctx).Order("name").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// ListAuthors returns all authors
func (s *CatalogService) ListAuthors(ctx context.Context) ([]models.Author, error) {
	var authors []models.Author
	if err := s.db.WithContext(ctx).Order("name").Find(&authors).Error; err != nil {
		return nil, fmt.Errorf("failed to list authors: %w", err)
	}
	return authors, nil
}

// ListBooks returns all titles with their categories and authors
func (s *CatalogService) ListBooks(ctx context.Context) ([]models.Book, error) {
	var books []models.Book
	err := s.db.WithContext(ctx).
		Preload("Category").
		Preload("Authors").
		Order("title").
		Find(&books).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

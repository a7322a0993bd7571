package models

import "time"

// Author represents a book author
type Author struct {
	ID          uint       `gorm:"primarykey;column:id" json:"id"`
	Name        string     `gorm:"column:name;not null" json:"name"`
	Bio         string     `gorm:"column:bio" json:"bio"`
	DateOfBirth *time.Time `gorm:"column:date_of_birth" json:"dateOfBirth,omitempty"`
	BaseModel
}

// TableName sets the table name for GORM
func (Author) TableName() string {
	return "authors"
}

// Category represents a book category
type Category struct {
	ID          uint   `gorm:"primarykey;column:id" json:"id"`
	Name        string `gorm:"column:name;not null" json:"name"`
	Description string `gorm:"column:description" json:"description"`
	BaseModel
}

// TableName sets the table name for GORM
func (Category) TableName() string {
	return "categories"
}

// Book represents a title, not a physical item
type Book struct {
	ID              uint   `gorm:"primarykey;column:id" json:"id"`
	Title           string `gorm:"column:title;not null" json:"title"`
	ISBN            string `gorm:"column:isbn;not null;unique" json:"isbn"`
	CategoryID      uint   `gorm:"column:category_id;not null" json:"categoryId"`
	Publisher       string `gorm:"column:publisher" json:"publisher"`
	PublicationYear int    `gorm:"column:publication_year" json:"publicationYear"`
	Language        string `gorm:"column:language" json:"language"`
	Description     string `gorm:"column:description" json:"description"`
	BaseModel

	// Relationships
	Category Category `gorm:"foreignKey:CategoryID;references:ID" json:"category"`
	Authors  []Author `gorm:"many2many:book_authors" json:"authors"`
}

// TableName sets the table name for GORM
func (Book) TableName() string {
	return "books"
}

// BookCopy represents one physical, lendable unit of a Book
type BookCopy struct {
	ID            uint          `gorm:"primarykey;column:id" json:"id"`
	BookID        uint          `gorm:"column:book_id;not null;index" json:"bookId"`
	Barcode       string        `gorm:"column:barcode;not null;unique" json:"barcode"`
	ShelfLocation string        `gorm:"column:shelf_location" json:"shelfLocation"`
	Status        CopyStatus    `gorm:"column:status;not null;default:available" json:"status"`
	Condition     CopyCondition `gorm:"column:condition;not null" json:"condition"`
	AddedAt       time.Time     `gorm:"column:added_at;not null" json:"addedAt"`
	BaseModel

	// Relationships
	Book Book `gorm:"foreignKey:BookID;references:ID" json:"book"`
}

// TableName sets the table name for GORM
func (BookCopy) TableName() string {
	return "book_copies"
}

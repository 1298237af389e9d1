// Package content implements the blog's REST resources on top of the
// store, handler and params packages.
package content

import (
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection names.
const (
	ArticlesCollection   = "articles"
	CategoriesCollection = "categories"
	BookmarksCollection  = "bookmarks"
)

// Article is a blog post. JSON and BSON field names are identical so
// partial update payloads address stored fields directly.
type Article struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title      string             `bson:"title" json:"title"`
	Slug       string             `bson:"slug" json:"slug"`
	Summary    string             `bson:"summary,omitempty" json:"summary,omitempty"`
	Body       string             `bson:"body" json:"body"`
	CategoryID primitive.ObjectID `bson:"categoryId,omitempty" json:"categoryId,omitempty"`
	Tags       []string           `bson:"tags" json:"tags"`
	Published  bool               `bson:"published" json:"published"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Category groups articles. Articles in a hidden category are visible to
// admins only.
type Category struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Slug        string             `bson:"slug" json:"slug"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Hidden      bool               `bson:"hidden" json:"hidden"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Bookmark is a saved link.
type Bookmark struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title     string             `bson:"title" json:"title"`
	URL       string             `bson:"url" json:"url"`
	Note      string             `bson:"note,omitempty" json:"note,omitempty"`
	Tags      []string           `bson:"tags" json:"tags"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CategoryStat is one row of the category statistics.
type CategoryStat struct {
	CategoryID primitive.ObjectID `bson:"_id" json:"categoryId"`
	Name       string             `bson:"-" json:"name"`
	Articles   int64              `bson:"articles" json:"articles"`
	LatestAt   time.Time          `bson:"latestAt" json:"latestAt"`
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/skshohagmiah/folio/internal/objectid"
)

func TestSanitizeUpdate(t *testing.T) {
	payload := map[string]interface{}{
		"_id":       "5f1d7a2b9c3e4d5f6a7b8c9d",
		"createdAt": "2020-01-01",
		"$set":      map[string]interface{}{"admin": true},
		"title":     "New title",
		"summary":   nil,
	}

	u := SanitizeUpdate(payload)
	assert.Equal(t, map[string]interface{}{"title": "New title"}, u.Set)
	assert.Equal(t, []string{"summary"}, u.Unset)
}

func TestSanitizeUpdate_CustomProtected(t *testing.T) {
	u := SanitizeUpdate(map[string]interface{}{"slug": "x", "title": "y"}, "slug")
	assert.Equal(t, map[string]interface{}{"title": "y"}, u.Set)
}

func TestRequireFields(t *testing.T) {
	doc := map[string]interface{}{
		"title":   "Hello",
		"content": "   ",
		"tags":    nil,
	}
	assert.Equal(t, []string{"content", "tags", "slug"}, RequireFields(doc, "title", "content", "tags", "slug"))
	assert.Empty(t, RequireFields(doc, "title"))
}

func TestUpdate_BuildersCopy(t *testing.T) {
	base := NewUpdate().SetField("a", 1)
	next := base.SetField("b", 2).UnsetField("c")

	assert.Len(t, base.Set, 1)
	assert.Empty(t, base.Unset)
	assert.Len(t, next.Set, 2)
	assert.Equal(t, []string{"c"}, next.Unset)
	assert.False(t, next.IsEmpty())
	assert.True(t, NewUpdate().IsEmpty())
}

func TestUpdate_Normalize(t *testing.T) {
	id := objectid.New()
	u, err := NewUpdate().SetField("categoryId", id.Hex()).Normalize("categoryId")
	require.NoError(t, err)
	assert.Equal(t, id, u.Set["categoryId"])

	_, err = NewUpdate().SetField("categoryId", "bad").Normalize("categoryId")
	assert.ErrorIs(t, err, objectid.ErrInvalid)
}

func TestUpdate_BSON(t *testing.T) {
	u := NewUpdate().SetField("b", 2).SetField("a", 1).UnsetField("c")
	want := bson.D{
		{Key: "$set", Value: bson.D{{Key: "a", Value: 1}, {Key: "b", Value: 2}}},
		{Key: "$unset", Value: bson.D{{Key: "c", Value: ""}}},
	}
	assert.Equal(t, want, u.BSON())
}

func TestParseSort(t *testing.T) {
	s := ParseSort("-createdAt, title,,+views,-")
	assert.Equal(t, Sort{
		{Field: "createdAt", Desc: true},
		{Field: "title"},
		{Field: "views"},
	}, s)
	assert.Equal(t, "-createdAt,title,views", s.String())
	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}, {Key: "title", Value: 1}, {Key: "views", Value: 1}}, s.BSON())
	assert.Equal(t, Sort{{Field: "a"}, {Field: "b", Desc: true}}, Asc("a").Then("b", true))
}

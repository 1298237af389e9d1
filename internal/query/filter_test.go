package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skshohagmiah/folio/internal/objectid"
)

func TestFilter_Immutable(t *testing.T) {
	base := New().Eq("status", "published")
	a := base.Eq("slug", "a")
	b := base.Eq("slug", "b")

	assert.Len(t, base.Conditions(), 1)
	assert.Equal(t, "a", a.Conditions()[1].Value)
	assert.Equal(t, "b", b.Conditions()[1].Value)
}

func TestFilter_InFlattensSingleSlice(t *testing.T) {
	f := New().In("tags", []string{"go", "db"})
	c := f.Conditions()[0]
	assert.Equal(t, OpIn, c.Op)
	assert.Equal(t, []interface{}{"go", "db"}, c.Value)

	g := New().In("tags", "go", "db")
	assert.Equal(t, c.Value, g.Conditions()[0].Value)
}

func TestFilter_Normalize(t *testing.T) {
	id := objectid.New()
	other := objectid.New()

	f := New().
		Eq("_id", id.Hex()).
		In("categoryId", other.Hex(), other).
		Eq("title", id.Hex())

	got, err := f.Normalize("_id", "categoryId")
	require.NoError(t, err)

	conds := got.Conditions()
	assert.Equal(t, id, conds[0].Value)
	assert.Equal(t, []interface{}{other, other}, conds[1].Value)
	// title is not an identifier field and stays a string
	assert.Equal(t, id.Hex(), conds[2].Value)

	// receiver untouched
	assert.Equal(t, id.Hex(), f.Conditions()[0].Value)
}

func TestFilter_NormalizeRejectsMalformed(t *testing.T) {
	tests := []Filter{
		New().Eq("_id", "abc"),
		New().Ne("_id", ""),
		New().In("_id", objectid.New().Hex(), "zzzzzzzzzzzzzzzzzzzzzzzz"),
	}
	for _, f := range tests {
		_, err := f.Normalize("_id")
		assert.True(t, errors.Is(err, objectid.ErrInvalid), f.String())
	}
}

func TestFilter_Validate(t *testing.T) {
	assert.NoError(t, New().Eq("a", 1).Regex("b", "^x", "i").Exists("c", true).Validate())
	assert.ErrorIs(t, New().Where("a", Op("like"), 1).Validate(), ErrUnknownOperator)
	assert.ErrorIs(t, New().Where("a", OpIn, 5).Validate(), ErrInvalidOperand)
	assert.ErrorIs(t, New().Where("a", OpExists, "yes").Validate(), ErrInvalidOperand)
	assert.ErrorIs(t, New().Regex("a", "(", "").Validate(), ErrInvalidOperand)
	assert.ErrorIs(t, New().Eq("$where", 1).Validate(), ErrInvalidField)
}

func TestFilter_BSON(t *testing.T) {
	f := New().
		Eq("status", "published").
		Gte("views", 10).
		Lt("views", 100).
		In("tags", "go").
		Regex("title", "^intro", "i")

	want := bson.D{
		{Key: "status", Value: "published"},
		{Key: "views", Value: bson.D{{Key: "$gte", Value: 10}, {Key: "$lt", Value: 100}}},
		{Key: "tags", Value: bson.D{{Key: "$in", Value: bson.A{"go"}}}},
		{Key: "title", Value: bson.D{{Key: "$regex", Value: "^intro"}, {Key: "$options", Value: "i"}}},
	}
	assert.Equal(t, want, f.BSON())
	assert.Equal(t, bson.D{}, New().BSON())
}

func TestFromBSON(t *testing.T) {
	doc := bson.M{
		"status": "published",
		"views":  bson.M{"$gt": 3},
		"title":  primitive.Regex{Pattern: "go", Options: "i"},
		"$and": bson.A{
			bson.D{{Key: "hidden", Value: bson.D{{Key: "$exists", Value: false}}}},
		},
	}

	f, err := FromBSON(doc)
	require.NoError(t, err)

	byField := map[string]Condition{}
	for _, c := range f.Conditions() {
		byField[c.Field] = c
	}
	assert.Equal(t, OpEq, byField["status"].Op)
	assert.Equal(t, OpGt, byField["views"].Op)
	assert.Equal(t, Regex{Pattern: "go", Options: "i"}, byField["title"].Value)
	assert.Equal(t, false, byField["hidden"].Value)
}

func TestFromBSON_Errors(t *testing.T) {
	_, err := FromBSON(bson.M{"a": bson.M{"$near": 1}})
	assert.ErrorIs(t, err, ErrUnknownOperator)

	_, err = FromBSON(bson.M{"$where": "1"})
	assert.ErrorIs(t, err, ErrUnknownOperator)

	_, err = FromBSON("nope")
	assert.ErrorIs(t, err, ErrInvalidOperand)
}

func TestFromBSON_RegexWithOptionsKey(t *testing.T) {
	f, err := FromBSON(bson.D{{Key: "title", Value: bson.D{
		{Key: "$regex", Value: "^a"},
		{Key: "$options", Value: "i"},
	}}})
	require.NoError(t, err)
	assert.Equal(t, Regex{Pattern: "^a", Options: "i"}, f.Conditions()[0].Value)
}

package content

import (
	"net/http"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/skshohagmiah/folio/internal/apperr"
	"github.com/skshohagmiah/folio/internal/handler"
	"github.com/skshohagmiah/folio/internal/params"
	"github.com/skshohagmiah/folio/internal/query"
	"github.com/skshohagmiah/folio/internal/store"
)

var (
	categoryRequired = []string{"name"}
	categorySortable = []string{"name", "createdAt", "updatedAt"}
)

func (s *Service) listCategories(r *http.Request) (handler.Reply, error) {
	p := params.From(r)
	f := query.New()
	if !s.isAdmin(r) {
		f = f.Ne("hidden", true)
	}
	sort, err := p.Sort("sort", query.Asc("name"), categorySortable...)
	if err != nil {
		return handler.Reply{}, err
	}
	page, err := s.Categories.Paginate(r.Context(), f, p.Pagination(), sort)
	if err != nil {
		return handler.Reply{}, err
	}
	return handler.Page(page), nil
}

func (s *Service) getCategory(r *http.Request) (handler.Reply, error) {
	id, err := params.PathObjectID(r, "id")
	if err != nil {
		return handler.Reply{}, err
	}
	c, err := s.Categories.FindByID(r.Context(), id.Hex())
	if err != nil {
		return handler.Reply{}, err
	}
	if c == nil || (c.Hidden && !s.isAdmin(r)) {
		return handler.Reply{}, apperr.NotFound("category not found")
	}
	return handler.OK(c), nil
}

func (s *Service) createCategory(r *http.Request) (handler.Reply, error) {
	c, err := decodeNew[Category](r, categoryRequired...)
	if err != nil {
		return handler.Reply{}, err
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	} else {
		c.Slug = Slugify(c.Slug)
	}
	if c.Slug == "" {
		return handler.Reply{}, apperr.Validation("name must contain letters or digits")
	}
	created, err := s.Categories.InsertOne(r.Context(), c)
	if err != nil {
		return handler.Reply{}, err
	}
	return handler.Created(created), nil
}

func (s *Service) updateCategory(r *http.Request) (handler.Reply, error) {
	id, err := params.PathObjectID(r, "id")
	if err != nil {
		return handler.Reply{}, err
	}
	upd, err := decodeUpdate[Category](r, categoryRequired...)
	if err != nil {
		return handler.Reply{}, err
	}
	if raw, ok := upd.Set["slug"].(string); ok {
		slug := Slugify(raw)
		if slug == "" {
			return handler.Reply{}, apperr.Validation("slug must contain letters or digits")
		}
		upd = upd.SetField("slug", slug)
	}
	return updateAndFetch(r, s.Categories, "category", id.Hex(), upd)
}

// deleteCategory refuses to orphan articles unless cascade=true, in which
// case the articles are removed first. The two deletes are not atomic.
func (s *Service) deleteCategory(r *http.Request) (handler.Reply, error) {
	id, err := params.PathObjectID(r, "id")
	if err != nil {
		return handler.Reply{}, err
	}
	ctx := r.Context()
	c, err := s.Categories.FindByID(ctx, id.Hex())
	if err != nil {
		return handler.Reply{}, err
	}
	if c == nil {
		return handler.Reply{}, apperr.NotFound("category not found")
	}

	inCategory := query.New().Eq("categoryId", id)
	n, err := s.Articles.CountDocuments(ctx, inCategory)
	if err != nil {
		return handler.Reply{}, err
	}
	var removed int64
	if n > 0 {
		if cascade, _ := params.From(r).Bool("cascade"); !cascade {
			return handler.Reply{}, apperr.Conflict("category still has articles").
				WithDetails(map[string]interface{}{"articles": n})
		}
		res, err := s.Articles.DeleteMany(ctx, inCategory)
		if err != nil {
			return handler.Reply{}, err
		}
		removed = res.DeletedCount
	}

	res, err := s.Categories.DeleteByID(ctx, id.Hex())
	if err != nil {
		return handler.Reply{}, err
	}
	if res.DeletedCount == 0 {
		return handler.Reply{}, apperr.NotFound("category not found")
	}
	return handler.OK(map[string]interface{}{
		"id":              id.Hex(),
		"deletedArticles": removed,
	}).WithMessage("category deleted"), nil
}

// categoryStats counts articles per category, busiest first.
func (s *Service) categoryStats(r *http.Request) (handler.Reply, error) {
	ctx := r.Context()
	stats, err := store.Aggregate[CategoryStat](ctx, s.Articles, store.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "categoryId", Value: bson.D{{Key: "$exists", Value: true}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$categoryId"},
			{Key: "articles", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "latestAt", Value: bson.D{{Key: "$max", Value: "$createdAt"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "articles", Value: -1}, {Key: "_id", Value: 1}}}},
	})
	if err != nil {
		return handler.Reply{}, err
	}
	if len(stats) == 0 {
		return handler.OK([]CategoryStat{}), nil
	}

	ids := make([]interface{}, len(stats))
	for i, st := range stats {
		ids[i] = st.CategoryID
	}
	cats, err := s.Categories.Find(ctx, query.New().In("_id", ids...), query.FindOptions{})
	if err != nil {
		return handler.Reply{}, err
	}
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID.Hex()] = c.Name
	}
	for i := range stats {
		stats[i].Name = names[stats[i].CategoryID.Hex()]
	}
	return handler.OK(stats), nil
}

package content

import (
	"context"
	"net/http"
	"regexp"

	"github.com/skshohagmiah/folio/internal/apperr"
	"github.com/skshohagmiah/folio/internal/handler"
	"github.com/skshohagmiah/folio/internal/objectid"
	"github.com/skshohagmiah/folio/internal/params"
	"github.com/skshohagmiah/folio/internal/query"
)

var (
	articleRequired = []string{"title", "body"}
	articleSortable = []string{"createdAt", "updatedAt", "title"}
)

// hiddenCategoryIDs returns the identifiers of every hidden category.
func (s *Service) hiddenCategoryIDs(ctx context.Context) ([]interface{}, error) {
	hidden, err := s.Categories.Find(ctx, query.New().Eq("hidden", true), query.FindOptions{})
	if err != nil {
		return nil, err
	}
	ids := make([]interface{}, len(hidden))
	for i, c := range hidden {
		ids[i] = c.ID
	}
	return ids, nil
}

// articleFilter builds the list filter from the query string. Visitors
// only see published articles outside hidden categories.
func (s *Service) articleFilter(r *http.Request, admin bool) (query.Filter, error) {
	p := params.From(r)
	f := query.New()

	if _, ok := p.String("category"); ok {
		id, err := p.RequiredObjectID("category")
		if err != nil {
			return f, err
		}
		f = f.Eq("categoryId", id)
	}
	if tag, ok := p.String("tag"); ok {
		f = f.Eq("tags", tag)
	}
	if q, ok := p.String("q"); ok {
		f = f.Regex("title", regexp.QuoteMeta(q), "i")
	}

	if admin {
		if published, ok := p.Bool("published"); ok {
			f = f.Eq("published", published)
		}
		return f, nil
	}

	f = f.Eq("published", true)
	hidden, err := s.hiddenCategoryIDs(r.Context())
	if err != nil {
		return f, err
	}
	if len(hidden) > 0 {
		f = f.Nin("categoryId", hidden...)
	}
	return f, nil
}

func (s *Service) listArticles(r *http.Request) (handler.Reply, error) {
	f, err := s.articleFilter(r, s.isAdmin(r))
	if err != nil {
		return handler.Reply{}, err
	}
	p := params.From(r)
	sort, err := p.Sort("sort", query.Desc("createdAt"), articleSortable...)
	if err != nil {
		return handler.Reply{}, err
	}
	page, err := s.Articles.Paginate(r.Context(), f, p.Pagination(), sort)
	if err != nil {
		return handler.Reply{}, err
	}
	return handler.Page(page), nil
}

func (s *Service) getArticle(r *http.Request) (handler.Reply, error) {
	id, err := params.PathObjectID(r, "id")
	if err != nil {
		return handler.Reply{}, err
	}
	a, err := s.Articles.FindByID(r.Context(), id.Hex())
	if err != nil {
		return handler.Reply{}, err
	}
	if a == nil {
		return handler.Reply{}, apperr.NotFound("article not found")
	}
	if !s.isAdmin(r) {
		visible, err := s.visibleToPublic(r.Context(), a)
		if err != nil {
			return handler.Reply{}, err
		}
		if !visible {
			return handler.Reply{}, apperr.NotFound("article not found")
		}
	}
	return handler.OK(a), nil
}

func (s *Service) visibleToPublic(ctx context.Context, a *Article) (bool, error) {
	if !a.Published {
		return false, nil
	}
	if a.CategoryID.IsZero() {
		return true, nil
	}
	c, err := s.Categories.FindByID(ctx, a.CategoryID.Hex())
	if err != nil {
		return false, err
	}
	return c == nil || !c.Hidden, nil
}

func (s *Service) createArticle(r *http.Request) (handler.Reply, error) {
	a, err := decodeNew[Article](r, articleRequired...)
	if err != nil {
		return handler.Reply{}, err
	}
	if a.Slug == "" {
		a.Slug = Slugify(a.Title)
	} else {
		a.Slug = Slugify(a.Slug)
	}
	if a.Slug == "" {
		return handler.Reply{}, apperr.Validation("title must contain letters or digits")
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	if !a.CategoryID.IsZero() {
		if err := s.requireCategory(r.Context(), a.CategoryID); err != nil {
			return handler.Reply{}, err
		}
	}
	created, err := s.Articles.InsertOne(r.Context(), a)
	if err != nil {
		return handler.Reply{}, err
	}
	return handler.Created(created), nil
}

func (s *Service) updateArticle(r *http.Request) (handler.Reply, error) {
	id, err := params.PathObjectID(r, "id")
	if err != nil {
		return handler.Reply{}, err
	}
	upd, err := decodeUpdate[Article](r, articleRequired...)
	if err != nil {
		return handler.Reply{}, err
	}
	if raw, ok := upd.Set["categoryId"].(string); ok {
		cid, valid := objectid.Parse(raw)
		if !valid {
			return handler.Reply{}, apperr.BadRequest("invalid identifier for categoryId")
		}
		if err := s.requireCategory(r.Context(), cid); err != nil {
			return handler.Reply{}, err
		}
	}
	if raw, ok := upd.Set["slug"].(string); ok {
		slug := Slugify(raw)
		if slug == "" {
			return handler.Reply{}, apperr.Validation("slug must contain letters or digits")
		}
		upd = upd.SetField("slug", slug)
	}
	return updateAndFetch(r, s.Articles, "article", id.Hex(), upd)
}

func (s *Service) deleteArticle(r *http.Request) (handler.Reply, error) {
	id, err := params.PathObjectID(r, "id")
	if err != nil {
		return handler.Reply{}, err
	}
	res, err := s.Articles.DeleteByID(r.Context(), id.Hex())
	if err != nil {
		return handler.Reply{}, err
	}
	if res.DeletedCount == 0 {
		return handler.Reply{}, apperr.NotFound("article not found")
	}
	return handler.Message("article deleted"), nil
}

func (s *Service) requireCategory(ctx context.Context, id objectid.ID) error {
	c, err := s.Categories.FindByID(ctx, id.Hex())
	if err != nil {
		return err
	}
	if c == nil {
		return apperr.Validation("category does not exist").
			WithDetails(map[string]interface{}{"categoryId": id.Hex()})
	}
	return nil
}

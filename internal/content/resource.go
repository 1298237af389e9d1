package content

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skshohagmiah/folio/internal/apperr"
	"github.com/skshohagmiah/folio/internal/handler"
	"github.com/skshohagmiah/folio/internal/params"
	"github.com/skshohagmiah/folio/internal/query"
	"github.com/skshohagmiah/folio/internal/store"
)

// Resource serves list, get, create, update and delete for one collection
// without any resource specific rules.
type Resource[T any] struct {
	Name     string // singular, used in messages
	Coll     *store.Collection[T]
	Required []string
	Sort     query.Sort
	Sortable []string
}

// Mount registers the routes under r's current prefix.
func (res *Resource[T]) Mount(r chi.Router, wr *handler.Wrapper) {
	r.Get("/", wr.Wrap(res.List))
	r.Post("/", wr.Wrap(res.Create))
	r.Get("/{id}", wr.Wrap(res.Get))
	r.Put("/{id}", wr.Wrap(res.Update))
	r.Delete("/{id}", wr.Wrap(res.Delete))
}

func (res *Resource[T]) List(r *http.Request) (handler.Reply, error) {
	p := params.From(r)
	sort, err := p.Sort("sort", res.Sort, res.Sortable...)
	if err != nil {
		return handler.Reply{}, err
	}
	page, err := res.Coll.Paginate(r.Context(), query.New(), p.Pagination(), sort)
	if err != nil {
		return handler.Reply{}, err
	}
	return handler.Page(page), nil
}

func (res *Resource[T]) Get(r *http.Request) (handler.Reply, error) {
	id, err := params.PathObjectID(r, "id")
	if err != nil {
		return handler.Reply{}, err
	}
	doc, err := res.Coll.FindByID(r.Context(), id.Hex())
	if err != nil {
		return handler.Reply{}, err
	}
	if doc == nil {
		return handler.Reply{}, apperr.NotFound(res.Name + " not found")
	}
	return handler.OK(doc), nil
}

func (res *Resource[T]) Create(r *http.Request) (handler.Reply, error) {
	doc, err := decodeNew[T](r, res.Required...)
	if err != nil {
		return handler.Reply{}, err
	}
	created, err := res.Coll.InsertOne(r.Context(), doc)
	if err != nil {
		return handler.Reply{}, err
	}
	return handler.Created(created), nil
}

func (res *Resource[T]) Update(r *http.Request) (handler.Reply, error) {
	id, err := params.PathObjectID(r, "id")
	if err != nil {
		return handler.Reply{}, err
	}
	upd, err := decodeUpdate[T](r, res.Required...)
	if err != nil {
		return handler.Reply{}, err
	}
	return updateAndFetch(r, res.Coll, res.Name, id.Hex(), upd)
}

func (res *Resource[T]) Delete(r *http.Request) (handler.Reply, error) {
	id, err := params.PathObjectID(r, "id")
	if err != nil {
		return handler.Reply{}, err
	}
	out, err := res.Coll.DeleteByID(r.Context(), id.Hex())
	if err != nil {
		return handler.Reply{}, err
	}
	if out.DeletedCount == 0 {
		return handler.Reply{}, apperr.NotFound(res.Name + " not found")
	}
	return handler.Message(res.Name + " deleted"), nil
}

// decodeNew reads a creation payload: required fields must be present and
// protected fields are ignored.
func decodeNew[T any](r *http.Request, required ...string) (T, error) {
	var zero T
	var payload map[string]interface{}
	if err := handler.DecodeJSON(r, &payload); err != nil {
		return zero, err
	}
	if missing := query.RequireFields(payload, required...); len(missing) > 0 {
		return zero, apperr.MissingFields(missing)
	}
	for _, f := range query.DefaultProtectedFields {
		delete(payload, f)
	}
	return convert[T](payload)
}

// decodeUpdate reads a partial update payload. Clearing a required field,
// or setting a field to a value of the wrong type, is a ValidationError.
func decodeUpdate[T any](r *http.Request, required ...string) (query.Update, error) {
	var payload map[string]interface{}
	if err := handler.DecodeJSON(r, &payload); err != nil {
		return query.Update{}, err
	}
	upd := query.SanitizeUpdate(payload)
	if upd.IsEmpty() {
		return query.Update{}, apperr.BadRequest("no fields to update")
	}
	for _, f := range upd.Unset {
		for _, req := range required {
			if f == req {
				return query.Update{}, apperr.Validation("cannot clear required field " + f)
			}
		}
	}
	for _, req := range required {
		if v, ok := upd.Set[req]; ok {
			if s, isStr := v.(string); isStr && s == "" {
				return query.Update{}, apperr.Validation("cannot clear required field " + req)
			}
		}
	}
	if _, err := convert[T](upd.Set); err != nil {
		return query.Update{}, apperr.Validation("invalid field value").
			WithDetails(map[string]interface{}{"reason": err.Error()})
	}
	return upd, nil
}

func updateAndFetch[T any](r *http.Request, coll *store.Collection[T], name, id string, upd query.Update) (handler.Reply, error) {
	res, err := coll.UpdateByID(r.Context(), id, upd)
	if err != nil {
		return handler.Reply{}, err
	}
	if res.MatchedCount == 0 {
		return handler.Reply{}, apperr.NotFound(name + " not found")
	}
	doc, err := coll.FindByID(r.Context(), id)
	if err != nil {
		return handler.Reply{}, err
	}
	if doc == nil {
		return handler.Reply{}, apperr.NotFound(name + " not found")
	}
	return handler.OK(doc), nil
}

// convert maps a decoded JSON payload onto T through its json tags.
func convert[T any](payload map[string]interface{}) (T, error) {
	var out T
	data, err := json.Marshal(payload)
	if err != nil {
		return out, apperr.Wrap(err, apperr.KindBadRequest, "invalid payload")
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, apperr.Wrap(err, apperr.KindBadRequest, "invalid payload")
	}
	return out, nil
}

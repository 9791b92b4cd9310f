package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/alfredjeanlab/odm/internal/model"
	"github.com/alfredjeanlab/odm/internal/odm"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string             `json:"error"`
	Fields []model.FieldError `json:"fields,omitempty"`
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListSchemas handles GET /v1/schemas.
func (s *Server) handleListSchemas(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"schemas": s.session.DescribeAll()})
}

// handleGetSchema handles GET /v1/schemas/{schema}.
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.schema(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, odm.Describe(sc))
}

// handleSaveDocument handles POST /v1/documents/{schema}. The body is a
// relaxed extended-JSON record; "_id" selects the document to replace.
func (s *Server) handleSaveDocument(w http.ResponseWriter, r *http.Request) {
	d, ok := s.decodeBody(w, r)
	if !ok {
		return
	}
	created, err := s.session.Upsert(r.Context(), d)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeDocument(w, status, d)
}

// handleValidate handles POST /v1/validate/{schema}. Nothing is written.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	d, ok := s.decodeBody(w, r)
	if !ok {
		return
	}
	if err := d.Validate(); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

// handleListDocuments handles GET /v1/documents/{schema}.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.session.All(r.Context(), r.PathValue("schema"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	out := make([]json.RawMessage, 0, len(docs))
	for _, d := range docs {
		raw, err := odm.EncodeJSON(d)
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		out = append(out, json.RawMessage(raw))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}

// handleGetDocument handles GET /v1/documents/{schema}/{key}.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	d, ok := s.load(w, r)
	if !ok {
		return
	}
	writeDocument(w, http.StatusOK, d)
}

// handleGetField handles GET /v1/documents/{schema}/{key}/{field}. A
// reference field is returned as the referenced document, a container of
// references as the list or map of referenced documents.
func (s *Server) handleGetField(w http.ResponseWriter, r *http.Request) {
	d, ok := s.load(w, r)
	if !ok {
		return
	}
	v, err := s.session.DereferenceField(r.Context(), d, r.PathValue("field"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	out, err := fieldJSON(v)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"value": out})
}

// handleDeleteDocument handles DELETE /v1/documents/{schema}/{key}.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	d, ok := s.load(w, r)
	if !ok {
		return
	}
	if err := s.session.Delete(r.Context(), d); err != nil {
		s.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDropCollection handles DELETE /v1/collections/{schema}.
func (s *Server) handleDropCollection(w http.ResponseWriter, r *http.Request) {
	if err := s.session.DropCollection(r.Context(), r.PathValue("schema")); err != nil {
		s.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) schema(w http.ResponseWriter, r *http.Request) (*model.Schema, bool) {
	name := r.PathValue("schema")
	sc, ok := s.session.Registry().Lookup(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown schema %q", name))
		return nil, false
	}
	return sc, true
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) (*model.Document, bool) {
	d, err := s.session.LoadText(r.Context(), r.PathValue("schema"), r.PathValue("key"))
	if err != nil {
		s.writeFailure(w, err)
		return nil, false
	}
	return d, true
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request) (*model.Document, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return nil, false
	}
	d, err := s.session.DecodeJSON(r.PathValue("schema"), body)
	if err != nil {
		s.writeFailure(w, err)
		return nil, false
	}
	return d, true
}

// writeFailure maps document layer errors onto HTTP statuses.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	if ve, ok := model.AsValidationError(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "validation failed", Fields: ve.Errors})
		return
	}
	var ce *model.CoercionError
	switch {
	case odm.IsNotFound(err), errors.Is(err, model.ErrUnknownSchema):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &ce),
		errors.Is(err, odm.ErrMalformedJSON),
		errors.Is(err, model.ErrUnknownField),
		errors.Is(err, model.ErrNotTopLevel),
		errors.Is(err, model.ErrIncompatibleCls),
		errors.Is(err, model.ErrNoKey):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrBusy), errors.Is(err, model.ErrDeleted):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// fieldJSON renders a dereferenced field value. Documents become extended
// JSON; unresolved references and scalars pass through.
func fieldJSON(v any) (any, error) {
	switch x := v.(type) {
	case *model.Document:
		if x.Schema().IsEmbedded() {
			return embeddedJSON(x)
		}
		raw, err := odm.EncodeJSON(x)
		return json.RawMessage(raw), err
	case model.Ref:
		return x.Wire(), nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			j, err := fieldJSON(e)
			if err != nil {
				return nil, err
			}
			out[i] = j
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			j, err := fieldJSON(e)
			if err != nil {
				return nil, err
			}
			out[k] = j
		}
		return out, nil
	}
	return v, nil
}

// embeddedJSON renders an embedded document field by field.
func embeddedJSON(d *model.Document) (any, error) {
	out := make(map[string]any)
	for _, f := range d.Schema().Fields() {
		v, ok := d.Lookup(f.Name())
		if !ok {
			continue
		}
		j, err := fieldJSON(v)
		if err != nil {
			return nil, err
		}
		out[f.Name()] = j
	}
	return out, nil
}

func writeDocument(w http.ResponseWriter, status int, d *model.Document) {
	raw, err := odm.EncodeJSON(d)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/star/isstracker/internal/dataset"
	"github.com/star/isstracker/internal/oem"
	"github.com/star/isstracker/internal/tracker"
	"github.com/star/isstracker/internal/units"
)

// Error codes carried in the "error" field of failure payloads.
const (
	codeInvalidPagination = "invalid_pagination"
	codeInvalidUnits      = "invalid_units"
	codeNoData            = "no_data"
	codeNotFound          = "not_found"
	codeUnavailable       = "source_unavailable"
	codeInternal          = "internal"
)

type handlers struct {
	svc    *tracker.Service
	logger *slog.Logger
	help   []byte
}

type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type successPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// vectorJSON is the wire form of a state vector, keyed like the feed columns.
type vectorJSON struct {
	Epoch string  `json:"epoch"`
	X     float64 `json:"X"`
	Y     float64 `json:"Y"`
	Z     float64 `json:"Z"`
	XDot  float64 `json:"X_Dot"`
	YDot  float64 `json:"Y_Dot"`
	ZDot  float64 `json:"Z_Dot"`
}

func toJSON(vs []oem.StateVector) []vectorJSON {
	out := make([]vectorJSON, len(vs))
	for i, v := range vs {
		out[i] = vectorJSON{
			Epoch: v.Epoch,
			X:     v.Position.X,
			Y:     v.Position.Y,
			Z:     v.Position.Z,
			XDot:  v.Velocity.X,
			YDot:  v.Velocity.Y,
			ZDot:  v.Velocity.Z,
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorPayload{Error: code, Message: msg})
}

// writeErr maps a service error to its HTTP status. User errors are 4xx.
func (h *handlers) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var convErr *units.ConversionError
	switch {
	case errors.Is(err, tracker.ErrInvalidPagination):
		writeError(w, http.StatusBadRequest, codeInvalidPagination, err.Error())
	case errors.Is(err, units.ErrInvalidUnitToken):
		writeError(w, http.StatusBadRequest, codeInvalidUnits, err.Error())
	case errors.Is(err, dataset.ErrNoData):
		writeError(w, http.StatusNotFound, codeNoData, err.Error())
	case errors.Is(err, tracker.ErrEpochNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, tracker.ErrSourceUnavailable):
		h.logger.Warn("upstream unavailable", "component", "api", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "Unable to reach the ISS data source. Please try again later")
	case errors.As(err, &convErr):
		h.logger.Error("unit conversion failed", "component", "api", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, err.Error())
	default:
		h.logger.Error("request failed", "component", "api", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func (h *handlers) page(r *http.Request) (tracker.Page, error) {
	q := r.URL.Query()
	return tracker.ParsePage(q.Get("offset"), q.Get("limit"))
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	page, err := h.page(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJSON(h.svc.List(page)))
}

func (h *handlers) epochs(w http.ResponseWriter, r *http.Request) {
	page, err := h.page(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Epochs(page))
}

func (h *handlers) vectorAt(w http.ResponseWriter, r *http.Request) {
	vs, err := h.svc.VectorAt(r.PathValue("epoch"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJSON(vs))
}

func (h *handlers) speedAt(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.SpeedAt(r.PathValue("epoch"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *handlers) locationAt(w http.ResponseWriter, r *http.Request) {
	loc, err := h.svc.LocationAt(r.Context(), r.PathValue("epoch"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (h *handlers) now(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Now(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handlers) convert(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ConvertUnits(r.URL.Query().Get("units"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	msg := fmt.Sprintf("Data has been converted to %s units", res.To)
	switch {
	case res.To == units.None:
		msg = "No data is loaded; units are unset"
	case !res.Changed:
		msg = fmt.Sprintf("Data is already in %s units!", res.To)
	}
	writeJSON(w, http.StatusOK, successPayload{Success: true, Message: msg})
}

func (h *handlers) deleteData(w http.ResponseWriter, r *http.Request) {
	h.svc.Clear()
	writeJSON(w, http.StatusOK, successPayload{Success: true, Message: "data deleted"})
}

func (h *handlers) postData(w http.ResponseWriter, r *http.Request) {
	ds, err := h.svc.Reload(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successPayload{
		Success: true,
		Message: fmt.Sprintf("data restored (%d state vectors)", len(ds.Records)),
	})
}

func (h *handlers) comments(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Comments(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handlers) header(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Header(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *handlers) metadata(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Metadata(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *handlers) helpText(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(h.help)
}

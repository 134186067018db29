package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"saldo/internal/core"
	"saldo/internal/period"
	"saldo/internal/services"
)

func (s *Server) handleCurrentPeriod(w http.ResponseWriter, r *http.Request) {
	k := s.finance.CurrentPeriod()
	writeJSON(w, http.StatusOK, periodJSON{Period: string(k), Label: k.Label()})
}

func (s *Server) handlePeriodSummary(w http.ResponseWriter, r *http.Request) {
	key, err := periodParam(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeState(w, r, s.finance.GetPeriodSummary(r.Context(), key), func(v core.PeriodSummary) any {
		return toPeriodSummary(v)
	})
}

func (s *Server) handleCategoryDetail(w http.ResponseWriter, r *http.Request) {
	key, err := periodParam(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	category, err := categoryParam(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeState(w, r, s.finance.GetCategoryPeriodDetail(r.Context(), category, key), s.renderDetail)
}

func (s *Server) handleIncomeDetail(w http.ResponseWriter, r *http.Request) {
	key, err := periodParam(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeState(w, r, s.finance.GetIncomePeriodDetail(r.Context(), key), s.renderDetail)
}

func (s *Server) renderDetail(d core.CategoryPeriodDetail) any {
	return toCategoryDetail(d, s.loc)
}

func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	exclude, err := boolQuery(r, "exclude_current")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	st := s.finance.GetAvailableMonths(r.Context(), services.MonthsOptions{ExcludeCurrent: exclude})
	writeState(w, r, st, func(v []core.YearMonths) any {
		return toYearMonths(v)
	})
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	rec, err := parseRecord(r, s.loc)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	id, err := s.records.Create(r.Context(), kind, rec)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	key := period.FromMillis(rec.OccurredAtMillis, s.loc)
	w.Header().Set("Location", "/api/"+chi.URLParam(r, "kind")+"/"+id)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "period": string(key)})
}

func (s *Server) handleEditRecord(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	rec, err := parseRecord(r, s.loc)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	rec.ID = chi.URLParam(r, "id")
	if err := s.records.Edit(r.Context(), kind, rec); err != nil {
		writeErr(w, r, err)
		return
	}
	key := period.FromMillis(rec.OccurredAtMillis, s.loc)
	writeJSON(w, http.StatusOK, map[string]string{"id": rec.ID, "period": string(key)})
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	key, err := period.Parse(r.URL.Query().Get("period"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := s.records.Delete(r.Context(), kind, chi.URLParam(r, "id"), key); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

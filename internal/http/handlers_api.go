package http

import (
	"errors"
	"net/http"

	"finboard/internal/core"
	"finboard/internal/ledger"
)

type ledgerFeed struct {
	Profile core.UserProfile `json:"profile"`
	ledger.Snapshot
}

type mutationResponse struct {
	Transaction *core.Transaction `json:"transaction,omitempty"`
	Deleted     *bool             `json:"deleted,omitempty"`
	Balance     core.Money        `json:"balance"`
	Revision    uint64            `json:"revision"`
}

// handleAPILedger serves the display feed of the admitted user's ledger.
func (s *Server) handleAPILedger(w http.ResponseWriter, r *http.Request) {
	store, err := s.dashboard.Ledger()
	if err != nil {
		JSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	JSONResponse(w, http.StatusOK, ledgerFeed{
		Profile:  s.dashboard.Session().Profile,
		Snapshot: store.Snapshot(),
	})
}

func (s *Server) handleAPICreateTransaction(w http.ResponseWriter, r *http.Request) {
	store, err := s.dashboard.Ledger()
	if err != nil {
		JSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	in, err := DecodeTransactionJSON(r)
	if err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			JSONError(w, http.StatusUnprocessableEntity, inputErrorMessage(err))
			return
		}
		JSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	t, err := store.Add(in)
	if err != nil {
		JSONError(w, http.StatusUnprocessableEntity, inputErrorMessage(err))
		return
	}
	snap := store.Snapshot()
	JSONResponse(w, http.StatusCreated, mutationResponse{
		Transaction: &t,
		Balance:     snap.Balance,
		Revision:    snap.Revision,
	})
}

// handleAPIDeleteTransaction removes a transaction. Unknown ids succeed
// with deleted=false.
func (s *Server) handleAPIDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	store, err := s.dashboard.Ledger()
	if err != nil {
		JSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	id, err := ParseTransactionID(r)
	if err != nil {
		JSONError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	deleted := store.Delete(id)
	snap := store.Snapshot()
	JSONResponse(w, http.StatusOK, mutationResponse{
		Deleted:  &deleted,
		Balance:  snap.Balance,
		Revision: snap.Revision,
	})
}

package api

import (
	"errors"
	"net/http"

	"github.com/nls90/bootplane/pkg/boot"
	"github.com/nls90/bootplane/pkg/store"
)

type snapshotRequest struct {
	Name        *string  `json:"name"`
	SizeGiB     *float64 `json:"size_in_gb"`
	Active      *bool    `json:"active"`
	Description *string  `json:"description"`
	LogicalUnit *string  `json:"logical_unit"`
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	var unitID int64
	if raw := r.URL.Query().Get("logical_unit"); raw != "" {
		id, err := resolveRelation(raw)
		if err != nil {
			writeParseError(w, "%v", err)
			return
		}
		unitID = id
	}
	snapshots, err := s.store.Snapshots(r.Context(), unitID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]snapshotJSON, 0, len(snapshots))
	for _, sn := range snapshots {
		out = append(out, serializeSnapshot(sn))
	}
	writeJSON(w, http.StatusOK, out)
}

// createSnapshot refuses with a parse error unless the owning unit is
// offline; the refusal happens before any LVM command runs.
func (s *Server) createSnapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if err := decodeBody(r, &req); err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if req.Name == nil || req.LogicalUnit == nil {
		writeParseError(w, "'name' and 'logical_unit' fields are required")
		return
	}
	unitID, err := resolveRelation(*req.LogicalUnit)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	sn := &store.Snapshot{Name: *req.Name, LogicalUnitID: unitID}
	if req.SizeGiB != nil {
		sn.SizeGiB = *req.SizeGiB
	}
	if req.Description != nil {
		sn.Description = *req.Description
	}
	activate := req.Active != nil && *req.Active
	created, err := s.core.CreateSnapshot(r.Context(), sn, activate)
	if err != nil {
		if errors.Is(err, boot.ErrConflict) {
			writeParseError(w, "%v", err)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, serializeSnapshot(created))
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	sn, err := s.store.Snapshot(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, serializeSnapshot(sn))
}

// updateSnapshot changes the description or the active flag. Activation
// funnels through the core so the one-active-sibling rule holds.
func (s *Server) updateSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	sn, err := s.store.Snapshot(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	var req snapshotRequest
	if err := decodeBody(r, &req); err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if req.Description != nil {
		sn.Description = *req.Description
		if err := s.store.UpdateSnapshot(r.Context(), sn); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Active != nil {
		switch {
		case *req.Active:
			err = s.core.ActivateSnapshot(r.Context(), sn.ID)
		case sn.Active:
			// Only the holder of the active slot may clear it; deactivating
			// an already inactive snapshot must not touch its sibling.
			err = s.store.SetActiveSnapshot(r.Context(), sn.LogicalUnitID, 0)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		sn.Active = *req.Active
	}
	writeJSON(w, http.StatusOK, serializeSnapshot(sn))
}

// deleteSnapshot refuses with a parse error unless the owning unit is
// offline, mirroring create.
func (s *Server) deleteSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if err := s.core.DestroySnapshot(r.Context(), id); err != nil {
		if errors.Is(err, boot.ErrConflict) {
			writeParseError(w, "%v", err)
			return
		}
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) activateSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if err := s.core.ActivateSnapshot(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultEnvelope{Result: true, Message: "Activated"})
}

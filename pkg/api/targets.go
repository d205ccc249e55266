package api

import (
	"net/http"

	"github.com/nls90/bootplane/pkg/store"
)

type targetRequest struct {
	Name      *string `json:"name"`
	Boot      *bool   `json:"boot"`
	Active    *bool   `json:"active"`
	Status    *int    `json:"status"`
	Initiator *string `json:"initiator"`
}

func (req *targetRequest) apply(t *store.Target) error {
	if req.Name != nil {
		t.Name = *req.Name
	}
	if req.Boot != nil {
		t.Boot = *req.Boot
	}
	if req.Active != nil {
		t.Active = *req.Active
	}
	if req.Status != nil {
		t.Status = store.TargetStatus(*req.Status)
	}
	if req.Initiator != nil {
		id, err := resolveRelation(*req.Initiator)
		if err != nil {
			return err
		}
		t.InitiatorID = &id
	}
	return nil
}

func (s *Server) listTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := s.store.Targets(r.Context(), r.URL.Query().Get("mac_address"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]targetJSON, 0, len(targets))
	for _, t := range targets {
		out = append(out, serializeTarget(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createTarget(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if err := decodeBody(r, &req); err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if req.Name == nil {
		writeParseError(w, "'name' field is required")
		return
	}
	target := &store.Target{}
	if err := req.apply(target); err != nil {
		writeParseError(w, "%v", err)
		return
	}
	created, err := s.store.CreateTarget(r.Context(), target)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, serializeTarget(created))
}

func (s *Server) getTarget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	target, err := s.store.Target(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, serializeTarget(target))
}

func (s *Server) updateTarget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	target, err := s.store.Target(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	var req targetRequest
	if err := decodeBody(r, &req); err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if err := req.apply(target); err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if err := s.store.UpdateTarget(r.Context(), target); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, serializeTarget(target))
}

// deleteTarget runs the full teardown: daemon connections and LUNs go first,
// the metadata row last.
func (s *Server) deleteTarget(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if err := s.core.DestroyTarget(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getBootDiskInfo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	info, err := s.core.BootDiskInfo(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) getMapDiskInfo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	info, err := s.core.MapDiskInfo(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) attachAllUsable(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if err := s.core.AttachAllUsable(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeText(w, http.StatusOK, "Attached all usable logical units")
}

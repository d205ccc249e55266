package api

import (
	"net/http"

	"github.com/nls90/bootplane/pkg/store"
)

type initiatorRequest struct {
	MACAddress *string `json:"mac_address"`
	Name       *string `json:"name"`
	Mode       *string `json:"mode"`
	Address    *string `json:"address"`
	PDU        *string `json:"pdu"`
	PDUPort    *int    `json:"pdu_port"`
	KVM        *string `json:"kvm"`
	KVMPort    *int    `json:"kvm_port"`
}

func (req *initiatorRequest) apply(i *store.Initiator) error {
	if req.MACAddress != nil {
		i.MACAddress = *req.MACAddress
	}
	if req.Name != nil {
		i.Name = *req.Name
	}
	if req.Mode != nil {
		i.Mode = store.InitiatorMode(*req.Mode)
	}
	if req.Address != nil {
		i.Address = req.Address
	}
	if req.PDU != nil {
		id, err := resolveRelation(*req.PDU)
		if err != nil {
			return err
		}
		i.PDUID = &id
	}
	if req.PDUPort != nil {
		i.PDUPort = req.PDUPort
	}
	if req.KVM != nil {
		id, err := resolveRelation(*req.KVM)
		if err != nil {
			return err
		}
		i.KVMID = &id
	}
	if req.KVMPort != nil {
		i.KVMPort = req.KVMPort
	}
	return nil
}

func (s *Server) listInitiators(w http.ResponseWriter, r *http.Request) {
	initiators, err := s.store.Initiators(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]initiatorJSON, 0, len(initiators))
	for _, i := range initiators {
		out = append(out, serializeInitiator(i))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createInitiator(w http.ResponseWriter, r *http.Request) {
	var req initiatorRequest
	if err := decodeBody(r, &req); err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if req.MACAddress == nil || req.Name == nil {
		writeParseError(w, "'mac_address' and 'name' fields are required")
		return
	}
	initiator := &store.Initiator{}
	if err := req.apply(initiator); err != nil {
		writeParseError(w, "%v", err)
		return
	}
	created, err := s.store.CreateInitiator(r.Context(), initiator)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, serializeInitiator(created))
}

func (s *Server) getInitiator(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	initiator, err := s.store.Initiator(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, serializeInitiator(initiator))
}

func (s *Server) updateInitiator(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	initiator, err := s.store.Initiator(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	var req initiatorRequest
	if err := decodeBody(r, &req); err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if err := req.apply(initiator); err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if err := s.store.UpdateInitiator(r.Context(), initiator); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, serializeInitiator(initiator))
}

func (s *Server) deleteInitiator(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if err := s.store.DeleteInitiator(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

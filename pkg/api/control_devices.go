package api

import (
	"net/http"

	"github.com/nls90/bootplane/pkg/store"
)

// controlDeviceRequest is the create/update body for PDU and KVM units.
// Absent fields keep their current value on update.
type controlDeviceRequest struct {
	Name       *string `json:"name"`
	Address    *string `json:"address"`
	MACAddress *string `json:"mac_address"`
	Ports      *int    `json:"ports"`
	Model      *string `json:"model"`
	Serial     *string `json:"serial"`
	Username   *string `json:"username"`
	Password   *string `json:"password"`
}

func (req *controlDeviceRequest) apply(d *store.ControlDevice) {
	if req.Name != nil {
		d.Name = *req.Name
	}
	if req.Address != nil {
		d.Address = *req.Address
	}
	if req.MACAddress != nil {
		d.MACAddress = req.MACAddress
	}
	if req.Ports != nil {
		d.Ports = *req.Ports
	}
	if req.Model != nil {
		d.Model = *req.Model
	}
	if req.Serial != nil {
		d.Serial = *req.Serial
	}
	if req.Username != nil {
		d.Username = *req.Username
	}
	if req.Password != nil {
		d.Password = *req.Password
	}
}

func (s *Server) listControlDevices(kind store.ControlDeviceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		devices, err := s.store.ControlDevices(r.Context(), kind)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]controlDeviceJSON, 0, len(devices))
		for _, d := range devices {
			out = append(out, serializeControlDevice(d))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) createControlDevice(kind store.ControlDeviceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req controlDeviceRequest
		if err := decodeBody(r, &req); err != nil {
			writeParseError(w, "%v", err)
			return
		}
		if req.Name == nil || req.Address == nil {
			writeParseError(w, "'name' and 'address' fields are required")
			return
		}
		device := &store.ControlDevice{Kind: kind}
		req.apply(device)
		created, err := s.store.CreateControlDevice(r.Context(), device)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, serializeControlDevice(created))
	}
}

func (s *Server) getControlDevice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	device, err := s.store.ControlDevice(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, serializeControlDevice(device))
}

func (s *Server) updateControlDevice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	device, err := s.store.ControlDevice(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	var req controlDeviceRequest
	if err := decodeBody(r, &req); err != nil {
		writeParseError(w, "%v", err)
		return
	}
	req.apply(device)
	if err := s.store.UpdateControlDevice(r.Context(), device); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, serializeControlDevice(device))
}

func (s *Server) deleteControlDevice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if err := s.store.DeleteControlDevice(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

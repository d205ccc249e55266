package api

import (
	"net/http"

	"github.com/nls90/bootplane/pkg/store"
)

type logicalUnitRequest struct {
	Name        *string  `json:"name"`
	VendorID    *string  `json:"vendor_id"`
	ProductID   *string  `json:"product_id"`
	ProductRev  *string  `json:"product_rev"`
	VolumeGroup *string  `json:"volume_group"`
	SizeGiB     *float64 `json:"size_in_gb"`
	Use         *bool    `json:"use"`
	Status      *int     `json:"status"`
	BootCount   *int64   `json:"boot_count"`
	Target      *string  `json:"target"`
}

func (req *logicalUnitRequest) apply(lu *store.LogicalUnit) error {
	if req.Name != nil {
		lu.Name = *req.Name
	}
	if req.VendorID != nil {
		lu.VendorID = *req.VendorID
	}
	if req.ProductID != nil {
		lu.ProductID = *req.ProductID
	}
	if req.ProductRev != nil {
		lu.ProductRev = *req.ProductRev
	}
	if req.VolumeGroup != nil {
		lu.VolumeGroup = *req.VolumeGroup
	}
	if req.SizeGiB != nil {
		lu.SizeGiB = *req.SizeGiB
	}
	if req.Use != nil {
		lu.Use = *req.Use
	}
	if req.Status != nil {
		lu.Status = store.UnitStatus(*req.Status)
	}
	if req.BootCount != nil {
		lu.BootCount = *req.BootCount
	}
	if req.Target != nil {
		id, err := resolveRelation(*req.Target)
		if err != nil {
			return err
		}
		lu.TargetID = &id
	}
	return nil
}

func (s *Server) listLogicalUnits(w http.ResponseWriter, r *http.Request) {
	var status *store.UnitStatus
	if literal := r.URL.Query().Get("status"); literal != "" {
		parsed, err := store.ParseUnitStatus(literal)
		if err != nil {
			writeParseError(w, "%v", err)
			return
		}
		status = &parsed
	}
	units, err := s.store.LogicalUnits(r.Context(), status)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]logicalUnitJSON, 0, len(units))
	for _, lu := range units {
		out = append(out, serializeLogicalUnit(lu))
	}
	writeJSON(w, http.StatusOK, out)
}

// createLogicalUnit provisions the backing volume through the core before
// the metadata row appears.
func (s *Server) createLogicalUnit(w http.ResponseWriter, r *http.Request) {
	var req logicalUnitRequest
	if err := decodeBody(r, &req); err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if req.Name == nil || req.VolumeGroup == nil {
		writeParseError(w, "'name' and 'volume_group' fields are required")
		return
	}
	lu := &store.LogicalUnit{SizeGiB: 20}
	if err := req.apply(lu); err != nil {
		writeParseError(w, "%v", err)
		return
	}
	created, err := s.core.CreateLogicalUnit(r.Context(), lu)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, serializeLogicalUnit(created))
}

func (s *Server) getLogicalUnit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	lu, err := s.store.LogicalUnit(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, serializeLogicalUnit(lu))
}

func (s *Server) updateLogicalUnit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	lu, err := s.store.LogicalUnit(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	var req logicalUnitRequest
	if err := decodeBody(r, &req); err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if err := req.apply(lu); err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if err := s.store.UpdateLogicalUnit(r.Context(), lu); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, serializeLogicalUnit(lu))
}

func (s *Server) deleteLogicalUnit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if err := s.core.DestroyLogicalUnit(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) revertLogicalUnit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	var req struct {
		Snapshot string `json:"snapshot"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if err := s.core.Revert(r.Context(), id, req.Snapshot); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultEnvelope{Result: true, Message: "Reverted"})
}

func (s *Server) recreateLogicalUnit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if err := s.core.Recreate(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeText(w, http.StatusOK, "Successfully recreated the disk")
}

func (s *Server) dumpLogicalUnit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	var req struct {
		LocalFile string `json:"local_file"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if req.LocalFile == "" {
		writeParseError(w, "'local_file' field is required")
		return
	}
	if err := s.core.Dump(r.Context(), id, req.LocalFile); err != nil {
		writeError(w, err)
		return
	}
	writeText(w, http.StatusOK, "Successfully dumped the disk to %s", req.LocalFile)
}

func (s *Server) restoreLogicalUnit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	var req struct {
		LocalFile string `json:"local_file"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeParseError(w, "%v", err)
		return
	}
	if req.LocalFile == "" {
		writeParseError(w, "'local_file' field is required")
		return
	}
	if err := s.core.Restore(r.Context(), id, req.LocalFile); err != nil {
		writeError(w, err)
		return
	}
	writeText(w, http.StatusOK, "Successfully restored the disk from %s", req.LocalFile)
}

// mountDevicePathResponse is the body of get_mount_device_path, consumed by
// the mount agent.
type mountDevicePathResponse struct {
	Result     bool   `json:"result"`
	DevicePath string `json:"device_path,omitempty"`
}

func (s *Server) getMountDevicePath(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeParseError(w, "%v", err)
		return
	}
	path, ok, err := s.core.MountDevicePath(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mountDevicePathResponse{Result: ok, DevicePath: path})
}

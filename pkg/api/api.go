// Package api exposes the control plane over HTTP/JSON: CRUD for the
// metadata resources plus the boot negotiation actions the initiators and
// the mount agent drive.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"k8s.io/klog/v2"

	"github.com/nls90/bootplane/pkg/boot"
	"github.com/nls90/bootplane/pkg/store"
)

// Core is the slice of the selection and attachment core the API drives.
type Core interface {
	BootDiskInfo(ctx context.Context, targetID int64) (*boot.DiskInfo, error)
	MapDiskInfo(ctx context.Context, targetID int64) (*boot.DiskInfo, error)
	AttachAllUsable(ctx context.Context, targetID int64) error
	DestroyTarget(ctx context.Context, targetID int64) error
	CreateLogicalUnit(ctx context.Context, lu *store.LogicalUnit) (*store.LogicalUnit, error)
	DestroyLogicalUnit(ctx context.Context, id int64) error
	Revert(ctx context.Context, id int64, snapshotName string) error
	Recreate(ctx context.Context, id int64) error
	Dump(ctx context.Context, id int64, localFile string) error
	Restore(ctx context.Context, id int64, localFile string) error
	CreateSnapshot(ctx context.Context, sn *store.Snapshot, activate bool) (*store.Snapshot, error)
	DestroySnapshot(ctx context.Context, id int64) error
	ActivateSnapshot(ctx context.Context, id int64) error
	MountDevicePath(ctx context.Context, logicalUnitID int64) (string, bool, error)
}

// Server routes the API onto the store and the core.
type Server struct {
	store *store.Store
	core  Core
}

// NewServer wires the API to its backends.
func NewServer(st *store.Store, core Core) *Server {
	return &Server{store: st, core: core}
}

// Router builds the full route table under /api.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)
	api := r.PathPrefix("/api").Subrouter()
	// Trailing slashes are part of the documented paths; accept both.
	api.StrictSlash(true)

	api.HandleFunc("/pdus/", s.listControlDevices(store.KindPDU)).Methods(http.MethodGet)
	api.HandleFunc("/pdus/", s.createControlDevice(store.KindPDU)).Methods(http.MethodPost)
	api.HandleFunc("/pdus/{id}/", s.getControlDevice).Methods(http.MethodGet)
	api.HandleFunc("/pdus/{id}/", s.updateControlDevice).Methods(http.MethodPatch, http.MethodPut)
	api.HandleFunc("/pdus/{id}/", s.deleteControlDevice).Methods(http.MethodDelete)

	api.HandleFunc("/kvms/", s.listControlDevices(store.KindKVM)).Methods(http.MethodGet)
	api.HandleFunc("/kvms/", s.createControlDevice(store.KindKVM)).Methods(http.MethodPost)
	api.HandleFunc("/kvms/{id}/", s.getControlDevice).Methods(http.MethodGet)
	api.HandleFunc("/kvms/{id}/", s.updateControlDevice).Methods(http.MethodPatch, http.MethodPut)
	api.HandleFunc("/kvms/{id}/", s.deleteControlDevice).Methods(http.MethodDelete)

	api.HandleFunc("/initiators/", s.listInitiators).Methods(http.MethodGet)
	api.HandleFunc("/initiators/", s.createInitiator).Methods(http.MethodPost)
	api.HandleFunc("/initiators/{id}/", s.getInitiator).Methods(http.MethodGet)
	api.HandleFunc("/initiators/{id}/", s.updateInitiator).Methods(http.MethodPatch, http.MethodPut)
	api.HandleFunc("/initiators/{id}/", s.deleteInitiator).Methods(http.MethodDelete)

	api.HandleFunc("/targets/", s.listTargets).Methods(http.MethodGet)
	api.HandleFunc("/targets/", s.createTarget).Methods(http.MethodPost)
	api.HandleFunc("/targets/{id}/", s.getTarget).Methods(http.MethodGet)
	api.HandleFunc("/targets/{id}/", s.updateTarget).Methods(http.MethodPatch, http.MethodPut)
	api.HandleFunc("/targets/{id}/", s.deleteTarget).Methods(http.MethodDelete)
	api.HandleFunc("/targets/{id}/get_boot_disk_info/", s.getBootDiskInfo).Methods(http.MethodGet)
	api.HandleFunc("/targets/{id}/get_map_disk_info/", s.getMapDiskInfo).Methods(http.MethodGet)
	api.HandleFunc("/targets/{id}/attach_all_usable_logical_units/", s.attachAllUsable).Methods(http.MethodPatch)

	api.HandleFunc("/logical_units/", s.listLogicalUnits).Methods(http.MethodGet)
	api.HandleFunc("/logical_units/", s.createLogicalUnit).Methods(http.MethodPost)
	api.HandleFunc("/logical_units/{id}/", s.getLogicalUnit).Methods(http.MethodGet)
	api.HandleFunc("/logical_units/{id}/", s.updateLogicalUnit).Methods(http.MethodPatch, http.MethodPut)
	api.HandleFunc("/logical_units/{id}/", s.deleteLogicalUnit).Methods(http.MethodDelete)
	api.HandleFunc("/logical_units/{id}/revert/", s.revertLogicalUnit).Methods(http.MethodPatch)
	api.HandleFunc("/logical_units/{id}/recreate/", s.recreateLogicalUnit).Methods(http.MethodPatch)
	api.HandleFunc("/logical_units/{id}/dump/", s.dumpLogicalUnit).Methods(http.MethodPatch)
	api.HandleFunc("/logical_units/{id}/restore/", s.restoreLogicalUnit).Methods(http.MethodPatch)
	api.HandleFunc("/logical_units/{id}/get_mount_device_path/", s.getMountDevicePath).Methods(http.MethodGet)

	api.HandleFunc("/snapshots/", s.listSnapshots).Methods(http.MethodGet)
	api.HandleFunc("/snapshots/", s.createSnapshot).Methods(http.MethodPost)
	api.HandleFunc("/snapshots/{id}/", s.getSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/snapshots/{id}/", s.updateSnapshot).Methods(http.MethodPatch, http.MethodPut)
	api.HandleFunc("/snapshots/{id}/", s.deleteSnapshot).Methods(http.MethodDelete)
	api.HandleFunc("/snapshots/{id}/activate/", s.activateSnapshot).Methods(http.MethodPatch)

	return r
}

// Serve runs the API on the given address until the context is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		klog.Infof("API listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

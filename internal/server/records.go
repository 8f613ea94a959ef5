package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
)

// records wires a JSON-only collection to the store.
type records[T any] struct {
	noun   string
	list   func(context.Context) ([]T, error)
	get    func(context.Context, string) (T, error)
	create func(context.Context, *T) error
	update func(context.Context, *T) error
	remove func(context.Context, string) error
	setID  func(*T, string)
}

func registerRecords[T any](s *Server, r *mux.Router, path string, c records[T]) {
	notFound := c.noun + " not found"

	r.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		items, err := c.list(r.Context())
		if err != nil {
			s.writeStoreError(w, r, err, notFound)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}).Methods(http.MethodGet)

	r.HandleFunc(path+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		item, err := c.get(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writeStoreError(w, r, err, notFound)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}).Methods(http.MethodGet)

	r.HandleFunc(path, s.protect(func(w http.ResponseWriter, r *http.Request) {
		var item T
		if err := decodeJSONBody(r, &item); err != nil {
			writeError(w, errBadRequest, http.StatusBadRequest)
			return
		}
		if err := c.create(r.Context(), &item); err != nil {
			s.writeStoreError(w, r, err, notFound)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	})).Methods(http.MethodPost)

	// fields missing from the body keep their stored values
	r.HandleFunc(path+"/{id}", s.protect(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := mux.Vars(r)["id"]
		item, err := c.get(ctx, id)
		if err != nil {
			s.writeStoreError(w, r, err, notFound)
			return
		}
		if err := decodeJSONBody(r, &item); err != nil {
			writeError(w, errBadRequest, http.StatusBadRequest)
			return
		}
		c.setID(&item, id)
		if err := c.update(ctx, &item); err != nil {
			s.writeStoreError(w, r, err, notFound)
			return
		}
		stored, err := c.get(ctx, id)
		if err != nil {
			s.writeStoreError(w, r, err, notFound)
			return
		}
		writeJSON(w, http.StatusOK, stored)
	})).Methods(http.MethodPut)

	r.HandleFunc(path+"/{id}", s.protect(func(w http.ResponseWriter, r *http.Request) {
		if err := c.remove(r.Context(), mux.Vars(r)["id"]); err != nil {
			s.writeStoreError(w, r, err, notFound)
			return
		}
		writeMessage(w, http.StatusOK, c.noun+" deleted successfully")
	})).Methods(http.MethodDelete)
}

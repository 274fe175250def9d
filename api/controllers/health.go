package controllers

import (
	"net/http"

	"github.com/blueoakmerch/merchops-backend/api/responses"
	"github.com/blueoakmerch/merchops-backend/pkg/config"
	"github.com/blueoakmerch/merchops-backend/pkg/db"
	pkgerrors "github.com/blueoakmerch/merchops-backend/pkg/errors"
	"github.com/blueoakmerch/merchops-backend/pkg/logger"
)

const envHeader = "X-MerchOps-Env"

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database not ready"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}

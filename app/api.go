package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fiffu/versionwatch/config"
	"github.com/fiffu/versionwatch/lib"
	"github.com/fiffu/versionwatch/lib/catalog"
	"github.com/fiffu/versionwatch/lib/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// 1x1 transparent GIF.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

func NewAPI(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, svc *lib.Service, reg *prometheus.Registry) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{Addr: addr, Handler: router(cfg, log, svc, reg)}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Sugar().Infof("Listening on %s", addr)
			go srv.ListenAndServe()
			return nil
		},
		OnStop: srv.Shutdown,
	})

	return srv
}

func router(cfg *config.Config, log *zap.Logger, svc *lib.Service, reg *prometheus.Registry) http.Handler {
	ctrl := &controller{log, svc}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/notifications/{notification_id}/pixel.gif", ctrl.pixel)

	r.Group(func(r chi.Router) {
		if creds := cfg.GetCreds(); len(creds) > 0 {
			r.Use(middleware.BasicAuth("versionwatch", creds))
		} else {
			log.Sugar().Info("Auth is disabled since no credentials are defined")
		}

		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

		r.Route("/api", func(r chi.Router) {
			r.Route("/users", func(r chi.Router) {
				r.Post("/", ctrl.registerUser)
				r.Get("/{user_id}/subscriptions", ctrl.listSubscriptions)
				r.Post("/{user_id}/subscriptions", ctrl.subscribe)
				r.Delete("/{user_id}/subscriptions/{service_key}", ctrl.unsubscribe)
			})
			r.Get("/services", ctrl.listServices)
			r.Get("/services/{service_key}/versions", ctrl.listVersions)
			r.Post("/poll/{platform}", ctrl.poll)
			r.Post("/notifications/run", ctrl.runNotifications)
		})
	})

	return r
}

type controller struct {
	log *zap.Logger
	svc *lib.Service
}

func (ctrl *controller) reject(w http.ResponseWriter, status int, err error) {
	if err != nil {
		http.Error(w, err.Error(), status)
	} else {
		w.WriteHeader(status)
	}
}

// fail maps an error kind to its status code.
func (ctrl *controller) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.NotFound):
		ctrl.reject(w, http.StatusNotFound, err)
	case errors.Is(err, errors.NotValid):
		ctrl.reject(w, http.StatusBadRequest, err)
	default:
		ctrl.log.Sugar().Errorw("Request failed", "err", err)
		ctrl.reject(w, http.StatusInternalServerError, err)
	}
}

func (ctrl *controller) resolve(w http.ResponseWriter, status int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		ctrl.log.Sugar().Errorw("Request failed", "err", err)
		ctrl.reject(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func (ctrl *controller) user(r *http.Request) (*models.User, error) {
	raw := chi.URLParam(r, "user_id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, errors.NotValidf("user id %q", raw)
	}
	return ctrl.svc.FindUser(r.Context(), uint(id))
}

func (ctrl *controller) registerUser(w http.ResponseWriter, r *http.Request) {
	user, err := ctrl.svc.RegisterUser(r.Context(), r.FormValue("email"))
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusCreated, UserView{}.From(user))
}

func (ctrl *controller) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	user, err := ctrl.user(r)
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	subs, err := ctrl.svc.ListActive(r.Context(), user.ID)
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, FromMany[models.Subscription, SubscriptionView](subs))
}

func (ctrl *controller) subscribe(w http.ResponseWriter, r *http.Request) {
	user, err := ctrl.user(r)
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	serviceKey := r.FormValue("service_key")
	if serviceKey == "" {
		ctrl.reject(w, http.StatusBadRequest, errors.New("service_key is required"))
		return
	}

	sub, err := ctrl.svc.Subscribe(r.Context(), user.ID, serviceKey)
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, SubscriptionView{}.From(sub))
}

func (ctrl *controller) unsubscribe(w http.ResponseWriter, r *http.Request) {
	user, err := ctrl.user(r)
	if err != nil {
		ctrl.fail(w, err)
		return
	}

	sub, err := ctrl.svc.Unsubscribe(r.Context(), user.ID, chi.URLParam(r, "service_key"))
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	if sub == nil {
		ctrl.reject(w, http.StatusNotFound, errors.New("no active subscription"))
		return
	}
	ctrl.resolve(w, http.StatusOK, SubscriptionView{}.From(sub))
}

func (ctrl *controller) listServices(w http.ResponseWriter, r *http.Request) {
	services := ctrl.svc.Catalog().Services()
	if platform := r.URL.Query().Get("platform"); platform != "" {
		services = ctrl.svc.Catalog().ForPlatform(platform)
	}
	ctrl.resolve(w, http.StatusOK, FromMany[catalog.Service, ServiceView](services))
}

func (ctrl *controller) listVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := ctrl.svc.ServiceVersions(r.Context(), chi.URLParam(r, "service_key"))
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, FromMany[models.Version, VersionView](versions))
}

func (ctrl *controller) poll(w http.ResponseWriter, r *http.Request) {
	summaries, err := ctrl.svc.PollPlatforms(r.Context(), chi.URLParam(r, "platform"))
	if err != nil {
		ctrl.fail(w, err)
		return
	}

	out := make([]PollSummaryView, len(summaries))
	for i, s := range summaries {
		out[i] = PollSummaryView{}.From(s)
	}
	ctrl.resolve(w, http.StatusOK, out)
}

func (ctrl *controller) runNotifications(w http.ResponseWriter, r *http.Request) {
	summary, err := ctrl.svc.RunBatch(r.Context())
	if err != nil {
		ctrl.fail(w, err)
		return
	}
	ctrl.resolve(w, http.StatusOK, BatchSummaryView{}.From(summary))
}

// pixel always serves the image; unknown notifications are only logged.
func (ctrl *controller) pixel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "notification_id")

	metadata := map[string]any{"remote_addr": r.RemoteAddr}
	for k, v := range r.Header {
		metadata[k] = strings.Join(v, ", ")
	}
	if _, err := ctrl.svc.RecordPixel(r.Context(), id, metadata); err != nil {
		ctrl.log.Sugar().Infow("Pixel not recorded", "notification_id", id, "err", err)
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(pixelGIF)
}

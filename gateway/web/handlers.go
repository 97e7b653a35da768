package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/imagestore"
	"github.com/luckyonesl/frigate-mqtt-pricure-viewer/topic"
)

// setNoCache marks a response as non-cacheable so browsers always refetch
// the latest snapshot.
func setNoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

// writeImage emits a stored snapshot with freshness headers.
func writeImage(w http.ResponseWriter, rec imagestore.Record) {
	setNoCache(w)
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(rec.Size()))
	w.Header().Set("X-Image-Timestamp", strconv.FormatInt(rec.CapturedAt.Unix(), 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rec.Data)
}

// handleImage serves the single-key snapshot. In gallery mode it falls back
// to the most recently captured image across all keys so the endpoint stays
// useful regardless of mode.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	if rec, ok := s.store.Read(topic.Singleton); ok {
		writeImage(w, rec)
		return
	}
	if s.gallery {
		if entry, ok := s.store.Latest(); ok {
			writeImage(w, entry.Record)
			return
		}
	}
	setNoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleImageKey serves the snapshot for a camera/object pair.
func (s *Server) handleImageKey(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key := topic.Key{Camera: vars["camera"], Object: vars["object"]}

	rec, ok := s.store.Read(key)
	if !ok {
		setNoCache(w)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeImage(w, rec)
}

type galleryImage struct {
	Camera    string `json:"camera"`
	Object    string `json:"object"`
	Timestamp int64  `json:"timestamp"`
	Size      int    `json:"size_bytes"`
}

type galleryResponse struct {
	Topic  string        `json:"topic"`
	Images []galleryImage `json:"images"`
	Latest *galleryImage  `json:"latest"`
}

// handleGallery lists every stored key with capture metadata.
func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	entries := s.store.ReadAll()

	resp := galleryResponse{
		Topic:  s.cfg.MQTT.Topic,
		Images: make([]galleryImage, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Images = append(resp.Images, galleryImage{
			Camera:    e.Key.Camera,
			Object:    e.Key.Object,
			Timestamp: e.Record.CapturedAt.Unix(),
			Size:      e.Record.Size(),
		})
	}
	if latest, ok := s.store.Latest(); ok {
		resp.Latest = &galleryImage{
			Camera:    latest.Key.Camera,
			Object:    latest.Key.Object,
			Timestamp: latest.Record.CapturedAt.Unix(),
			Size:      latest.Record.Size(),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type statusResponse struct {
	Topic       string   `json:"topic"`
	Mode        string   `json:"mode"`
	MQTTBroker  string   `json:"mqtt_broker"`
	HasImage    bool     `json:"has_image"`
	NumImages   int      `json:"num_images"`
	LastImageTS int64    `json:"last_image_ts,omitempty"`
	LastSize    int      `json:"last_image_size,omitempty"`
	Cameras     []string `json:"cameras,omitempty"`
	Objects     []string `json:"objects,omitempty"`
	Listeners   int      `json:"listeners"`
	Upserts     int64    `json:"images_received"`
}

// handleStatus reports subscription and store state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	mode := "single"
	if s.gallery {
		mode = "gallery"
	}

	resp := statusResponse{
		Topic:      s.cfg.MQTT.Topic,
		Mode:       mode,
		MQTTBroker: s.cfg.MQTT.BrokerAddr(),
		NumImages:  s.store.Len(),
		HasImage:   s.store.Len() > 0,
		Listeners:  s.notifier.Count(),
		Upserts:    s.store.Upserts(),
	}
	if latest, ok := s.store.Latest(); ok {
		resp.LastImageTS = latest.Record.CapturedAt.Unix()
		resp.LastSize = latest.Record.Size()
	}
	if s.gallery {
		resp.Cameras = s.store.Cameras()
		resp.Objects = s.store.Objects()
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleHealthz aggregates component health into a single status.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}

	agg := s.monitor.AggregateHealth(appName)
	code := http.StatusOK
	if agg.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":     agg.Status,
		"message":    agg.Message,
		"components": s.monitor.GetAll(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	setNoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"sound-memos-go/internal/classify"
	"sound-memos-go/internal/generation"
	"sound-memos-go/internal/logger"
	"sound-memos-go/internal/musicmatch"
	"sound-memos-go/internal/pipeline"
	"sound-memos-go/internal/report"
	"sound-memos-go/internal/store"
	"sound-memos-go/internal/titler"
	"sound-memos-go/internal/transcription"
	"sound-memos-go/internal/types"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "sound-memos-go").Info("starting service")

	// The title policy has no safe default: refuse to start without it.
	policy, err := titler.LoadPolicy(os.Getenv("TITLE_POLICY_PATH"))
	if err != nil {
		log.WithError(err).Fatal("failed to load title policy")
	}
	log.WithField("policy_version", policy.Version).WithField("lang", policy.Lang).Info("title policy loaded")

	var gen titler.TextGenerator
	if os.Getenv("USE_MOCK_LLM") == "true" {
		log.Info("mock LLM mode ON")
		gen = &generation.Mock{}
	} else {
		gen = generation.NewOpenAI(os.Getenv("OPENAI_API_KEY"), envOr("OPENAI_MODEL", "gpt-5-mini"))
	}
	titles := titler.NewCandidateGenerator(gen, policy, logger.NewComponent("titler"))

	recordings := store.NewMemory()
	orch := pipeline.NewOrchestrator(
		classify.New(),
		transcription.New(),
		musicmatch.New(),
		recordings,
		titles,
		envOr("TRANSCRIBE_LOCALE", "ko-KR"),
	)

	mux := http.NewServeMux()

	// health
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.New().WithRequest(r).Info("health check")
		fmt.Fprint(w, "ok")
	})

	// process endpoint: runs the full pipeline for one capture
	mux.HandleFunc("/process", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "process")
		reqLog.Info("process request received")

		audioURL := r.URL.Query().Get("audio_url")
		if audioURL == "" {
			reqLog.Warn("missing audio_url")
			http.Error(w, "missing audio_url", http.StatusBadRequest)
			return
		}
		timeoutSec := 60
		if t := r.URL.Query().Get("timeout_sec"); t != "" {
			fmt.Sscanf(t, "%d", &timeoutSec)
		}
		rec := &types.Recording{
			ID:        uuid.New().String(),
			AudioURL:  audioURL,
			CreatedAt: time.Now(),
			Location:  r.URL.Query().Get("location"),
			Weather:   r.URL.Query().Get("weather"),
		}
		reqLog = reqLog.WithField("recording_id", rec.ID).WithField("audio_url", audioURL)

		ctx, cancel := context.WithTimeout(r.Context(), time.Duration(timeoutSec)*time.Second)
		defer cancel()
		start := time.Now()
		res, err := orch.Run(ctx, rec)
		reqLog.WithField("duration_ms", time.Since(start).Milliseconds()).Info("pipeline finished")
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			reqLog.WithError(err).Warn("pipeline returned error")
			w.WriteHeader(http.StatusInternalServerError)
		}
		writeJSON(w, map[string]any{"result": res, "recording": rec})
	})

	// retry endpoint: re-runs every un-finalized recording
	mux.HandleFunc("/retry", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "retry")
		reqLog.Info("retry pass invoked")
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
		defer cancel()
		results, err := orch.RetryUnfinalized(ctx)
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			reqLog.WithError(err).Warn("retry pass incomplete")
			w.WriteHeader(http.StatusInternalServerError)
		}
		writeJSON(w, results)
	})

	// report endpoint: xlsx export of all recordings
	mux.HandleFunc("/report", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "report")
		recs, err := recordings.All(r.Context())
		if err != nil {
			reqLog.WithError(err).Error("store read failed")
			http.Error(w, "store read failed", http.StatusInternalServerError)
			return
		}
		book, err := report.BuildWorkbook(recs)
		if err != nil {
			reqLog.WithError(err).Error("workbook build failed")
			http.Error(w, "workbook build failed", http.StatusInternalServerError)
			return
		}
		defer book.Close()
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="recordings.xlsx"`)
		if _, err := book.WriteTo(w); err != nil {
			reqLog.WithError(err).Error("workbook write failed")
		}
	})

	addr := fmt.Sprintf(":%s", envOr("PORT", "8080"))
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.New().WithError(err).Error("failed to write response")
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

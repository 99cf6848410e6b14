package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"boqunits/config"
	"boqunits/services"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	r := setupRouter(db, zap.NewNop(), &config.Config{AuditSampleSize: 20})

	mock.ExpectPing()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	req := httptest.NewRequest(http.MethodOptions, "/api/companies/c-1/units", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	setupRouter(db, zap.NewNop(), &config.Config{}).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunScheduledNormalization_SkipsOverlappingRun(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	atomic.StoreInt32(&normalizeRunning, 1)
	defer atomic.StoreInt32(&normalizeRunning, 0)

	ran := runScheduledNormalization(context.Background(), nil, services.BatchOptions{}, zap.New(core))

	assert.False(t, ran)
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "still running")
}

func TestScheduleNormalization_InvalidSchedule(t *testing.T) {
	cfg := &config.Config{NormalizeCron: "every night", UnitTieBreak: config.TieBreakStore}

	_, err := scheduleNormalization(cfg, nil, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NORMALIZE_SCHEDULE")
}

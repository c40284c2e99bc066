//go:build integration
// +build integration

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/liamcoop/cvrisk/assessment"
	"github.com/liamcoop/cvrisk/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupDatabase starts PostgreSQL and applies the migrations the way cmd/migrate does
func setupDatabase(t *testing.T) string {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "cvrisk_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://test:test@%s:%s/cvrisk_test?sslmode=disable", host, port.Port())

	var m *migrate.Migrate
	for range 30 {
		m, err = migrate.New("file://../../migrations", url)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err, "Failed to create migration instance")
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return url
}

func TestServerWithPostgres(t *testing.T) {
	cfg := testConfig()
	cfg.DatabaseURL = setupDatabase(t)

	store, closeStore, err := openStore(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { closeStore() })

	engine, err := rules.NewEngine()
	require.NoError(t, err)
	svc := assessment.NewService(engine, store)

	srv := httptest.NewServer(NewServer(svc, cfg))
	t.Cleanup(srv.Close)

	resp := makeRequest(t, http.MethodGet, srv.URL+"/api/v1/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[HealthResponse](t, resp)
	assert.True(t, health.Database)

	resp = makeRequest(t, http.MethodPost, srv.URL+"/api/risk-assessment", `{"hasCad":true,"hasPad":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := resp.Header.Get("X-Assessment-ID")

	resp = makeRequest(t, http.MethodGet, srv.URL+"/api/risk-assessment/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec := decode[assessment.Record](t, resp)
	assert.Equal(t, rules.LevelExtremelyHigh, rec.Verdict.LevelCode)
	assert.Equal(t, "cad_with_pad_or_carotid", rec.Verdict.MatchedRules[0].Code)

	resp = makeRequest(t, http.MethodDelete, srv.URL+"/api/risk-assessment/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = makeRequest(t, http.MethodGet, srv.URL+"/api/risk-assessment/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

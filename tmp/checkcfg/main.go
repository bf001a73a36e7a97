package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskline/internal/app"
	"taskline/internal/server"
)

// Manual smoke check: bring up a workspace and drive one task through its
// lifecycle over the authenticated API.
func main() {
	a, err := app.Open(context.Background(), app.Options{
		Workspace: "/tmp/taskline-check",
		Logger:    slog.Default(),
	})
	if err != nil {
		panic(err)
	}
	defer a.Close()

	jwtSecret := "test-secret"
	h, err := server.New(server.Config{
		Engine: a.Engine,
		Index:  a.Index(),
		Bus:    a.Bus,
		Logger: a.Logger,
		Auth:   server.AuthConfig{JWTSecret: jwtSecret},
	})
	if err != nil {
		panic(err)
	}
	ts := httptest.NewServer(h)
	defer ts.Close()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "tester",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		panic(err)
	}

	post := func(path string, body map[string]any) map[string]any {
		b, _ := json.Marshal(body)
		req, _ := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+signed)
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			panic(err)
		}
		defer res.Body.Close()
		data, _ := io.ReadAll(res.Body)
		fmt.Printf("POST %s -> %d %s\n", path, res.StatusCode, data)
		var out map[string]any
		_ = json.Unmarshal(data, &out)
		return out
	}

	project := post("/v0/projects", map[string]any{"title": "Smoke test"})
	milestone := post(fmt.Sprintf("/v0/projects/%v/milestones", project["id"]), map[string]any{"title": "M1"})
	task := post(fmt.Sprintf("/v0/milestones/%v/tasks", milestone["id"]), map[string]any{
		"title": "t1", "estimated_points": 3,
	})
	post(fmt.Sprintf("/v0/tasks/%v/start", task["id"]), map[string]any{})
	post(fmt.Sprintf("/v0/tasks/%v/complete", task["id"]), map[string]any{})

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v0/statistics", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		panic(err)
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(res.Body)
	fmt.Printf("GET /v0/statistics -> %d %s\n", res.StatusCode, data)
}

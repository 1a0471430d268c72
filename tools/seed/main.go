// Command seed populates a dev environment with a master, a service and a
// Monday-to-Friday work schedule through the gateway's admin API.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/salonflow/backend/libs/auth"
)

func main() {
	var (
		baseURL    = flag.String("base-url", getenv("BASE_URL", "http://localhost:8080"), "gateway base url")
		secret     = flag.String("jwt-secret", getenv("JWT_SECRET", ""), "gateway signing secret")
		masterName = flag.String("master", getenv("SEED_MASTER", "Alex"), "master name")
		breakMin   = flag.Int("break", 15, "break minutes after each appointment")
		svcName    = flag.String("service", getenv("SEED_SERVICE", "Haircut"), "service name")
		duration   = flag.Int("duration", 60, "service duration in minutes")
		priceCents = flag.Int64("price-cents", 5000, "service price in cents")
		startMin   = flag.Int("start-minute", 9*60, "daily window start, minutes from midnight")
		endMin     = flag.Int("end-minute", 18*60, "daily window end, minutes from midnight")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("JWT_SECRET is required")
	}

	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		Sub:  "seed-tool",
		Role: auth.RoleAdmin,
		Iat:  now.Unix(),
		Exp:  now.Add(10 * time.Minute).Unix(),
	}, *secret)
	if err != nil {
		fatal(err.Error())
	}

	c := client{base: strings.TrimRight(*baseURL, "/"), token: token}

	var master struct {
		ID string `json:"id"`
	}
	if err := c.post("/api/v1/admin/masters", map[string]any{
		"name":          *masterName,
		"break_minutes": *breakMin,
	}, &master); err != nil {
		fatal(err.Error())
	}
	fmt.Printf("master=%s\n", master.ID)

	var svc struct {
		ID string `json:"id"`
	}
	if err := c.post("/api/v1/admin/services", map[string]any{
		"name":             *svcName,
		"duration_minutes": *duration,
		"price_cents":      *priceCents,
		"currency":         "USD",
	}, &svc); err != nil {
		fatal(err.Error())
	}
	fmt.Printf("service=%s\n", svc.ID)

	for weekday := 1; weekday <= 5; weekday++ {
		if err := c.post("/api/v1/admin/work-windows", map[string]any{
			"master_id":    master.ID,
			"weekday":      weekday,
			"start_minute": *startMin,
			"end_minute":   *endMin,
		}, nil); err != nil {
			fatal(err.Error())
		}
	}
	fmt.Println("work windows: Mon-Fri")
}

type client struct {
	base  string
	token string
}

func (c client) post(path string, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: status=%d body=%s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}

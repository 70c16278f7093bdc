package robot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// httpClient is a shared HTTP client with timeout to prevent blocking.
// Used by all HTTPController instances.
var httpClient = &http.Client{
	Timeout: 2 * time.Second,
}

// HTTPController implements Controller against the RPC shim's REST bridge.
// This is the primary controller used by pepperd for head movement.
type HTTPController struct {
	BaseURL string
}

// NewHTTPController creates a new HTTP-based robot controller.
// addr is host:port of the RPC shim.
func NewHTTPController(addr string) *HTTPController {
	return &HTTPController{
		BaseURL: fmt.Sprintf("http://%s", addr),
	}
}

// SetAngles commands absolute joint angles with a shared speed fraction.
func (r *HTTPController) SetAngles(names []string, angles []float64, speedFraction float64) error {
	if len(names) != len(angles) {
		return fmt.Errorf("set_angles: %d names but %d angles", len(names), len(angles))
	}
	payload := map[string]interface{}{
		"names":              names,
		"angles":             angles,
		"fraction_max_speed": speedFraction,
	}
	return r.post("/motion/set_angles", payload)
}

// SetStiffnesses sets the stiffness of a joint chain.
func (r *HTTPController) SetStiffnesses(chain string, value float64) error {
	payload := map[string]interface{}{
		"names":     chain,
		"stiffness": value,
	}
	return r.post("/motion/set_stiffnesses", payload)
}

// post sends a JSON payload to the shim and checks the status code.
func (r *HTTPController) post(path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	resp, err := httpClient.Post(r.BaseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request to %s rejected: %s", path, resp.Status)
	}
	return nil
}

package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AltairaLabs/VoiceKit/runtime/logger"
)

const maxAnswerSize = 1 << 20

// NewHTTPClient returns the traced client used for signaling.
func NewHTTPClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

// Signaler posts a session description offer and returns the answer.
type Signaler struct {
	Endpoint string
	Model    string
	Voice    string
	Client   *http.Client
}

func (s *Signaler) url() (string, error) {
	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if s.Model != "" {
		q.Set("model", s.Model)
	}
	if s.Voice != "" {
		q.Set("voice", s.Voice)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Exchange sends offer with credential as the bearer token. Every failure,
// including ctx expiry, is a *ConnectionError.
func (s *Signaler) Exchange(ctx context.Context, credential, offer string) (string, error) {
	target, err := s.url()
	if err != nil {
		return "", &ConnectionError{Stage: StageSignaling, Cause: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(offer))
	if err != nil {
		return "", &ConnectionError{Stage: StageSignaling, Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/sdp")

	logger.APIRequest("realtime", http.MethodPost, target, map[string]string{
		"Authorization": "Bearer " + credential,
		"Content-Type":  "application/sdp",
	}, nil)

	client := s.Client
	if client == nil {
		client = NewHTTPClient()
	}
	resp, err := client.Do(req)
	if err != nil {
		logger.APIResponse("realtime", 0, "", err)
		return "", &ConnectionError{Stage: StageSignaling, Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAnswerSize))
	if err != nil {
		return "", &ConnectionError{Stage: StageSignaling, StatusCode: resp.StatusCode, Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("signaling endpoint returned %s", strconv.Itoa(resp.StatusCode))
		logger.APIResponse("realtime", resp.StatusCode, string(body), err)
		return "", &ConnectionError{Stage: StageSignaling, StatusCode: resp.StatusCode, Cause: err}
	}
	logger.APIResponse("realtime", resp.StatusCode, "", nil)

	answer := string(bytes.TrimSpace(body)) + "\r\n"
	if err := ValidateAnswer(answer); err != nil {
		return "", &ConnectionError{Stage: StageAnswer, StatusCode: resp.StatusCode, Cause: err}
	}
	return answer, nil
}

// ValidateAnswer checks that answer parses as SDP and negotiates an audio
// section with a G.711 µ-law codec.
func ValidateAnswer(answer string) error {
	var sd sdp.SessionDescription
	if err := sd.Unmarshal([]byte(answer)); err != nil {
		return fmt.Errorf("malformed SDP answer: %w", err)
	}
	for _, md := range sd.MediaDescriptions {
		if md.MediaName.Media != "audio" {
			continue
		}
		for _, format := range md.MediaName.Formats {
			pt, err := strconv.ParseUint(format, 10, 8)
			if err != nil {
				continue
			}
			codec, err := sd.GetCodecForPayloadType(uint8(pt))
			if err != nil {
				continue
			}
			if strings.EqualFold(codec.Name, "PCMU") && codec.ClockRate == 8000 {
				return nil
			}
		}
	}
	return fmt.Errorf("SDP answer has no PCMU audio section")
}

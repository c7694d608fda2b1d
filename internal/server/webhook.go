package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/vietddude/textchain/internal/metrics"
)

const (
	maxBodyBytes = 64 << 10

	replyRateLimited = "Too many messages. Please wait a minute and try again."
)

// InboundSMS is the webhook payload. Twilio posts it form-encoded; other
// gateways post the same fields as JSON.
type InboundSMS struct {
	From       string `json:"From"`
	To         string `json:"To"`
	Body       string `json:"Body"`
	MessageSid string `json:"MessageSid"`
	NumMedia   string `json:"NumMedia"`
}

type jsonReply struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message *string  `xml:"Message,omitempty"`
}

// renderTwiML wraps reply in a TwiML document. An empty reply produces an
// empty <Response>, which tells Twilio not to answer.
func renderTwiML(reply string) []byte {
	resp := twimlResponse{}
	if reply != "" {
		resp.Message = &reply
	}
	out, err := xml.Marshal(resp)
	if err != nil {
		out = []byte("<Response></Response>")
	}
	return append([]byte(xml.Header), out...)
}

func (s *Server) handleTwilio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		metrics.WebhookMessages.WithLabelValues("twilio", "invalid").Inc()
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	if !s.verifyTwilio(r) {
		s.log.Warn("Rejected unsigned Twilio webhook", "remote", r.RemoteAddr)
		metrics.WebhookMessages.WithLabelValues("twilio", "forbidden").Inc()
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	msg := InboundSMS{
		From:       r.PostForm.Get("From"),
		To:         r.PostForm.Get("To"),
		Body:       r.PostForm.Get("Body"),
		MessageSid: r.PostForm.Get("MessageSid"),
		NumMedia:   r.PostForm.Get("NumMedia"),
	}
	if strings.TrimSpace(msg.From) == "" {
		metrics.WebhookMessages.WithLabelValues("twilio", "invalid").Inc()
		http.Error(w, "missing From", http.StatusBadRequest)
		return
	}

	reply := s.handleInbound(r.Context(), "twilio", msg)

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write(renderTwiML(reply))
}

// verifyTwilio checks X-Twilio-Signature and the AccountSid when both an auth
// token and the public webhook URL are configured.
func (s *Server) verifyTwilio(r *http.Request) bool {
	if s.cfg.TwilioAuthToken == "" || s.cfg.TwilioWebhookURL == "" {
		return true
	}
	if sid := r.PostForm.Get("AccountSid"); s.cfg.TwilioAccountSID != "" && sid != s.cfg.TwilioAccountSID {
		return false
	}
	expected := twilioSignature(s.cfg.TwilioAuthToken, s.cfg.TwilioWebhookURL, r.PostForm)
	return hmac.Equal([]byte(expected), []byte(r.Header.Get("X-Twilio-Signature")))
}

// twilioSignature is base64(HMAC-SHA1(authToken, webhookURL + sorted key/value pairs)).
func twilioSignature(authToken, webhookURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(webhookURL)
	for _, k := range keys {
		for _, v := range form[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	var msg InboundSMS
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&msg); err != nil {
		metrics.WebhookMessages.WithLabelValues("json", "invalid").Inc()
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(msg.From) == "" {
		metrics.WebhookMessages.WithLabelValues("json", "invalid").Inc()
		http.Error(w, "missing From", http.StatusBadRequest)
		return
	}

	reply := s.handleInbound(r.Context(), "json", msg)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(jsonReply{Success: true, Response: reply})
}

// handleInbound runs one message through dedupe, the sender limit and the
// command engine. It returns an empty reply for duplicates.
func (s *Server) handleInbound(ctx context.Context, transport string, msg InboundSMS) string {
	log := s.log.With("request_id", uuid.NewString(), "transport", transport)
	log.Info("Received SMS", "from", msg.From, "body", msg.Body, "sid", msg.MessageSid)

	if msg.MessageSid != "" && s.dedupe != nil {
		first, err := s.dedupe.FirstDelivery(ctx, msg.MessageSid)
		if err != nil {
			log.Warn("Dedupe check failed, processing anyway", "error", err)
		} else if !first {
			log.Info("Duplicate webhook delivery dropped", "sid", msg.MessageSid)
			metrics.WebhookMessages.WithLabelValues(transport, "duplicate").Inc()
			return ""
		}
	}

	if !s.limiter.Allow(msg.From, s.now()) {
		log.Warn("Sender rate limited", "from", msg.From)
		metrics.WebhookMessages.WithLabelValues(transport, "rate_limited").Inc()
		return replyRateLimited
	}

	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	reply := s.responder.Process(ctx, msg.From, msg.Body)
	metrics.WebhookMessages.WithLabelValues(transport, "processed").Inc()
	log.Info("Sending SMS response", "to", msg.From, "response_len", len(reply))
	return reply
}

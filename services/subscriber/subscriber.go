package subscriber

import (
	"callbackbroker/internals/models"
	"callbackbroker/services/delivery"
	"encoding/json"
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"net/http"
	"sync/atomic"
)

const (
	InboxPath    = "/v1/client/inbox"
	maxInboxBody = 1 << 20
)

const homePage = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<title>Delivered Messages</title>
</head>
<body>
	<h1>Delivered Messages</h1>
	<ul id="messages"></ul>
	<script>
		const ws = new WebSocket("ws://" + location.host + "/ws");
		ws.onmessage = function(event) {
			const msg = JSON.parse(event.data);
			const item = document.createElement("li");
			item.textContent = msg.author + ": " + msg.contents;
			document.getElementById("messages").appendChild(item);
		};
	</script>
</body>
</html>
`

// InboxURL is the callback URL a subscriber listening on host:port registers.
func InboxURL(host string, port int) string {
	return fmt.Sprintf("http://%s:%d%s", host, port, InboxPath)
}

// Inbox receives deliveries from the broker, logs them and relays them to
// websocket viewers.
type Inbox struct {
	hub      *Hub
	logger   logrus.FieldLogger
	received atomic.Uint64
}

func NewInbox(hub *Hub, logger logrus.FieldLogger) *Inbox {
	return &Inbox{hub: hub, logger: logger}
}

func (in *Inbox) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post(InboxPath, in.receive)
	r.Get("/ws", in.hub.ServeHTTP)
	r.Get("/", home)
	return r
}

func (in *Inbox) Received() uint64 {
	return in.received.Load()
}

func (in *Inbox) receive(w http.ResponseWriter, r *http.Request) {
	var message models.Message
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInboxBody)).Decode(&message); err != nil {
		in.logger.WithError(err).Warn("malformed delivery")
		http.Error(w, fmt.Sprintf("malformed message: %v", err), http.StatusBadRequest)
		return
	}

	in.received.Add(1)
	in.logger.WithFields(logrus.Fields{
		"author":      message.Author,
		"contents":    message.Contents,
		"delivery_id": r.Header.Get(delivery.HeaderDeliveryID),
	}).Info("message received")
	in.hub.Broadcast(message)

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"received"}`))
}

func home(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(homePage))
}

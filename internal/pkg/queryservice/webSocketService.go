package queryservice

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
)

// WsConn is interface for websocket handling in the query service
type WsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	WriteJSON(v interface{}) error
}

// WSConnKeeper keeps job subscriptions, one job ID per connection
type WSConnKeeper struct {
	idConnectionMap map[string]map[WsConn]struct{}
	connectionIDMap map[WsConn]string
	mapLock         *sync.Mutex
	timeOut         time.Duration
	onSubscribe     func(WsConn, string)
}

// NewWSConnKeeper creates manager, idle connections are closed after timeOut
func NewWSConnKeeper(timeOut time.Duration) *WSConnKeeper {
	res := &WSConnKeeper{}
	res.idConnectionMap = make(map[string]map[WsConn]struct{})
	res.connectionIDMap = make(map[WsConn]string)
	res.mapLock = &sync.Mutex{}
	res.timeOut = timeOut
	if res.timeOut <= 0 {
		res.timeOut = time.Minute * 30
	}
	return res
}

// OnSubscribe sets a callback invoked after a connection subscribes to a job
func (kp *WSConnKeeper) OnSubscribe(f func(WsConn, string)) *WSConnKeeper {
	kp.onSubscribe = f
	return kp
}

type subscribeMsg struct {
	ID string `json:"id"`
}

// parseID accepts a plain job ID or {"id":"..."}
func parseID(msg string) string {
	if strings.HasPrefix(msg, "{") {
		var sm subscribeMsg
		if err := json.Unmarshal([]byte(msg), &sm); err != nil {
			goapp.Log.Warn().Err(err).Msg("wrong subscribe msg")
			return ""
		}
		return strings.TrimSpace(sm.ID)
	}
	return msg
}

// HandleConnection loops until connection active, the last received job ID is the subscription
func (kp *WSConnKeeper) HandleConnection(conn WsConn) error {
	defer kp.deleteConnection(conn)
	defer conn.Close()
	readCh := make(chan string)
	go func() {
		defer close(readCh)
		defer goapp.Log.Debug().Msg("read routine ended")
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				goapp.Log.Warn().Err(err).Msg("ws read")
				return
			}
			id := parseID(strings.TrimSpace(string(message)))
			goapp.Log.Debug().Str("ID", goapp.Sanitize(id)).Msg("got msg")
			if id != "" {
				readCh <- id
			} else {
				time.Sleep(20 * time.Millisecond)
			}
		}
	}()

	ta := time.After(kp.timeOut)
loop:
	for {
		select {
		case <-ta:
			goapp.Log.Debug().Msg("conn timeouted")
			break loop
		case id, ok := <-readCh:
			if !ok {
				goapp.Log.Debug().Msg("conn read closed")
				break loop
			}
			kp.saveConnection(conn, id)
			if kp.onSubscribe != nil {
				kp.onSubscribe(conn, id)
			}
			ta = time.After(kp.timeOut)
		}
	}
	goapp.Log.Debug().Msg("handleConnection finish")
	return nil
}

func (kp *WSConnKeeper) deleteConnection(conn WsConn) {
	kp.mapLock.Lock()
	defer kp.mapLock.Unlock()
	kp.deleteConnectionNoSync(conn)
}

func (kp *WSConnKeeper) deleteConnectionNoSync(conn WsConn) {
	id, found := kp.connectionIDMap[conn]
	if found {
		if conns, found := kp.idConnectionMap[id]; found {
			delete(conns, conn)
			if len(conns) == 0 {
				delete(kp.idConnectionMap, id)
			}
		}
	}
	delete(kp.connectionIDMap, conn)
}

func (kp *WSConnKeeper) saveConnection(conn WsConn, id string) {
	kp.mapLock.Lock()
	defer kp.mapLock.Unlock()
	kp.deleteConnectionNoSync(conn)
	kp.connectionIDMap[conn] = id
	conns, found := kp.idConnectionMap[id]
	if !found {
		conns = map[WsConn]struct{}{}
		kp.idConnectionMap[id] = conns
	}
	conns[conn] = struct{}{}
	goapp.Log.Info().Str("ID", id).Int("active", len(kp.connectionIDMap)).Msg("subscribed")
}

// GetConnections returns connections subscribed to the job
func (kp *WSConnKeeper) GetConnections(id string) ([]WsConn, bool) {
	kp.mapLock.Lock()
	defer kp.mapLock.Unlock()
	cm, found := kp.idConnectionMap[id]
	if !found {
		return nil, false
	}
	res := make([]WsConn, 0, len(cm))
	for c := range cm {
		res = append(res, c)
	}
	return res, true
}

// Active returns count of subscribed connections
func (kp *WSConnKeeper) Active() int {
	kp.mapLock.Lock()
	defer kp.mapLock.Unlock()
	return len(kp.connectionIDMap)
}

package bybit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yndnr/aggregator/internal/exchange"
)

var pingRequest = []byte(`{"op":"ping"}`)

type request struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// subscribeRequests builds subscribe frames of at most maxArgsPerSubscribe topics.
func subscribeRequests(symbols []string) [][]byte {
	var out [][]byte
	for start := 0; start < len(symbols); start += maxArgsPerSubscribe {
		end := min(start+maxArgsPerSubscribe, len(symbols))
		args := make([]string, 0, end-start)
		for _, s := range symbols[start:end] {
			args = append(args, topicPrefix+strings.ToUpper(s))
		}
		b, _ := json.Marshal(request{Op: "subscribe", Args: args})
		out = append(out, b)
	}
	return out
}

type frame struct {
	Op      string          `json:"op"`
	Success *bool           `json:"success"`
	RetMsg  string          `json:"ret_msg"`
	Topic   string          `json:"topic"`
	Data    json.RawMessage `json:"data"`
}

type tradeData struct {
	Time    int64  `json:"T"`
	Symbol  string `json:"s"`
	Side    string `json:"S"`
	Size    string `json:"v"`
	Price   string `json:"p"`
	TradeID string `json:"i"`
}

type message struct {
	op      string
	success bool
	retMsg  string
	trades  []exchange.Trade
}

// parseMessage decodes an op acknowledgement or a publicTrade push.
// Frames on other topics decode to an empty message.
func parseMessage(data []byte) (message, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return message{}, fmt.Errorf("decode frame: %w", err)
	}

	if f.Op != "" {
		m := message{op: f.Op, retMsg: f.RetMsg, success: true}
		if f.Success != nil {
			m.success = *f.Success
		}
		return m, nil
	}

	if !strings.HasPrefix(f.Topic, topicPrefix) || len(f.Data) == 0 {
		return message{}, nil
	}

	var rows []tradeData
	if err := json.Unmarshal(f.Data, &rows); err != nil {
		return message{}, fmt.Errorf("decode trades on %s: %w", f.Topic, err)
	}

	trades := make([]exchange.Trade, 0, len(rows))
	for _, r := range rows {
		trades = append(trades, exchange.Trade{
			Symbol:  r.Symbol,
			Side:    r.Side,
			Price:   r.Price,
			Size:    r.Size,
			TradeID: r.TradeID,
			Time:    time.UnixMilli(r.Time).UTC(),
		})
	}
	return message{trades: trades}, nil
}

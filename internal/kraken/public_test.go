package kraken

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krakenbot/internal/rest"
)

const (
	assetsFixture = `{"error":[],"result":{
		"XXBT":{"aclass":"currency","altname":"XBT","decimals":10,"display_decimals":5,"status":"enabled","collateral_value":1.0},
		"ZUSD":{"aclass":"currency","altname":"USD","decimals":4,"display_decimals":2,"status":"enabled"},
		"XETH":{"aclass":"currency","altname":"ETH","decimals":10,"display_decimals":5,"status":"enabled"},
		"DOT":{"aclass":"currency","altname":"DOT","decimals":10,"display_decimals":8,"status":"enabled"}
	}}`

	assetPairsFixture = `{"error":[],"result":{
		"XXBTZUSD":{"altname":"XBTUSD","wsname":"XBT/USD","aclass_base":"currency","base":"XXBT","aclass_quote":"currency","quote":"ZUSD","pair_decimals":1,"cost_decimals":5,"lot_decimals":8,"ordermin":"0.0001","costmin":"0.5","tick_size":"0.1","status":"online","fees":[[0,0.26]]},
		"XXBTZUSD.d":{"altname":"XBTUSD.d","aclass_base":"currency","base":"XXBT","aclass_quote":"currency","quote":"ZUSD","pair_decimals":1,"lot_decimals":8,"status":"online"},
		"XETHXXBT":{"altname":"ETHXBT","wsname":"ETH/XBT","aclass_base":"currency","base":"XETH","aclass_quote":"currency","quote":"XXBT","pair_decimals":5,"lot_decimals":8,"ordermin":"0.01","status":"online"},
		"DOTUSD":{"altname":"DOTUSD","wsname":"DOT/USD","aclass_base":"currency","base":"DOT","aclass_quote":"currency","quote":"ZUSD","pair_decimals":4,"lot_decimals":8,"ordermin":"0.5","status":"online"}
	}}`

	ohlcFixture = `{"error":[],"result":{
		"XXBTZUSD":[
			[1616662740,"52591.9","52599.9","52591.8","52599.9","52599.1","0.11091626",5],
			[1616662800,"52600.0","52674.9","52599.9","52665.2","52643.3","2.49035996",30],
			[1616662860,"52677.7","52686.4","52602.1","52609.5","52634.5","1.25810315",20]
		],
		"last":1616662800
	}}`

	tickerFixture = `{"error":[],"result":{"XXBTZUSD":{
		"a":["52609.60000","1","1.000"],"b":["52609.50000","1","1.000"],"c":["52641.10000","0.00080000"],
		"v":["1920.83610601","7954.00219674"],"p":["52389.94668","54022.90683"],"t":[23329,80463],
		"l":["51513.90000","51513.90000"],"h":["53219.90000","57200.00000"],"o":"52280.40000"
	}}}`
)

// fakeKraken serves canned public responses keyed by endpoint path
type fakeKraken struct {
	mu        sync.Mutex
	responses map[string]string
	status    map[string]int
	queries   map[string]url.Values
	hits      map[string]int
}

func newFakeKraken(t *testing.T) (*fakeKraken, *httptest.Server) {
	f := &fakeKraken{
		responses: map[string]string{
			"/0/public/Time":         `{"error":[],"result":{"unixtime":1616336594,"rfc1123":"Sun, 21 Mar 21 14:23:14 +0000"}}`,
			"/0/public/SystemStatus": `{"error":[],"result":{"status":"online","timestamp":"2023-07-06T18:52:00Z"}}`,
			"/0/public/Assets":       assetsFixture,
			"/0/public/AssetPairs":   assetPairsFixture,
			"/0/public/OHLC":         ohlcFixture,
			"/0/public/Ticker":       tickerFixture,
		},
		status:  map[string]int{},
		queries: map[string]url.Values{},
		hits:    map[string]int{},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		f.hits[r.URL.Path]++
		f.queries[r.URL.Path] = r.URL.Query()

		body, ok := f.responses[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if code, ok := f.status[r.URL.Path]; ok {
			w.WriteHeader(code)
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return f, server
}

func (f *fakeKraken) set(path, body string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[path] = body
	if status != 0 {
		f.status[path] = status
	}
}

func (f *fakeKraken) query(path string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[path]
}

func (f *fakeKraken) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func newTestPublicClient(server *httptest.Server, opts ...PublicOption) *PublicClient {
	opts = append([]PublicOption{WithRetry(2, time.Millisecond, 5*time.Millisecond)}, opts...)
	return NewPublicClient(server.URL, 2*time.Second, opts...)
}

func TestPublicClient_ServerTime(t *testing.T) {
	_, server := newFakeKraken(t)
	client := newTestPublicClient(server)

	st, err := client.ServerTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1616336594), st.UnixTime)
	assert.Equal(t, time.Date(2021, 3, 21, 14, 23, 14, 0, time.UTC), st.Time())
}

func TestPublicClient_SystemStatus(t *testing.T) {
	fake, server := newFakeKraken(t)
	client := newTestPublicClient(server)

	status, err := client.SystemStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Online())

	fake.set("/0/public/SystemStatus", `{"error":[],"result":{"status":"maintenance","timestamp":"2023-07-06T18:52:00Z"}}`, 0)
	status, err = client.SystemStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "maintenance", status.Status)
	assert.False(t, status.Online())
}

func TestPublicClient_Assets(t *testing.T) {
	fake, server := newFakeKraken(t)
	client := newTestPublicClient(server)

	assets, err := client.Assets(context.Background(), "XBT", "USD")
	require.NoError(t, err)

	assert.Equal(t, "XBT,USD", fake.query("/0/public/Assets").Get("asset"))

	xbt := assets["XXBT"]
	assert.Equal(t, "XXBT", xbt.Name)
	assert.Equal(t, "XBT", xbt.AltName)
	assert.Equal(t, 10, xbt.Decimals)
	assert.Contains(t, xbt.Extra, "collateral_value")
	assert.Nil(t, assets["ZUSD"].Extra)
}

func TestPublicClient_AssetPairs(t *testing.T) {
	_, server := newFakeKraken(t)
	client := newTestPublicClient(server)

	pairs, err := client.AssetPairs(context.Background())
	require.NoError(t, err)

	pair := pairs["XXBTZUSD"]
	assert.Equal(t, "XXBTZUSD", pair.Name)
	assert.Equal(t, "XBT/USD", pair.WSName)
	assert.True(t, decimal.RequireFromString("0.0001").Equal(pair.OrderMin))
	assert.Contains(t, pair.Extra, "fees")
}

func TestPublicClient_Ticker(t *testing.T) {
	fake, server := newFakeKraken(t)
	client := newTestPublicClient(server)

	ticker, err := client.Ticker(context.Background(), "XBTUSD")
	require.NoError(t, err)

	assert.Equal(t, "XBTUSD", fake.query("/0/public/Ticker").Get("pair"))
	assert.Equal(t, "52641.1", ticker.LastPrice().String())
	assert.Equal(t, "52609.55", ticker.Mid().String())

	_, err = client.Ticker(context.Background(), "")
	assert.Error(t, err)
}

func TestPublicClient_OHLC(t *testing.T) {
	t.Run("parses candles", func(t *testing.T) {
		fake, server := newFakeKraken(t)
		client := newTestPublicClient(server)

		ohlc, err := client.OHLC(context.Background(), "XBTUSD", 0, 1616662700)
		require.NoError(t, err)

		q := fake.query("/0/public/OHLC")
		assert.Equal(t, "60", q.Get("interval"))
		assert.Equal(t, "1616662700", q.Get("since"))

		assert.Equal(t, "XXBTZUSD", ohlc.Pair)
		assert.Equal(t, int64(1616662800), ohlc.Last)
		require.Len(t, ohlc.Candles, 3)

		first := ohlc.Candles[0]
		assert.Equal(t, time.Unix(1616662740, 0).UTC(), first.Time)
		assert.Equal(t, "52591.9", first.Open.String())
		assert.Equal(t, "52599.1", first.VWAP.String())
		assert.Equal(t, int64(5), first.Count)

		v, ok := first.Column("volume")
		assert.True(t, ok)
		assert.InDelta(t, 0.11091626, v, 1e-9)
		_, ok = first.Column("spread")
		assert.False(t, ok)
	})

	t.Run("rejects unsupported interval before calling out", func(t *testing.T) {
		fake, server := newFakeKraken(t)
		client := newTestPublicClient(server)

		_, err := client.OHLC(context.Background(), "XBTUSD", 7, 0)
		assert.ErrorIs(t, err, ErrInvalidInterval)
		assert.Zero(t, fake.hitCount("/0/public/OHLC"))
	})

	t.Run("accepts every documented interval", func(t *testing.T) {
		for _, minutes := range ValidIntervals {
			assert.True(t, IsValidInterval(minutes), minutes)
		}
		assert.False(t, IsValidInterval(120))
	})

	t.Run("short candle row is malformed", func(t *testing.T) {
		fake, server := newFakeKraken(t)
		fake.set("/0/public/OHLC", `{"error":[],"result":{"XXBTZUSD":[[1616662740,"1","2"]],"last":1}}`, 0)
		client := newTestPublicClient(server)

		_, err := client.OHLC(context.Background(), "XBTUSD", 60, 0)
		var malformed *rest.MalformedResponse
		assert.True(t, errors.As(err, &malformed))
	})

	t.Run("missing pair key is malformed", func(t *testing.T) {
		fake, server := newFakeKraken(t)
		fake.set("/0/public/OHLC", `{"error":[],"result":{"last":1}}`, 0)
		client := newTestPublicClient(server)

		_, err := client.OHLC(context.Background(), "XBTUSD", 60, 0)
		var malformed *rest.MalformedResponse
		assert.True(t, errors.As(err, &malformed))
	})
}

func TestPublicClient_Errors(t *testing.T) {
	t.Run("error array becomes APIError", func(t *testing.T) {
		fake, server := newFakeKraken(t)
		fake.set("/0/public/OHLC", `{"error":["EQuery:Unknown asset pair"]}`, 0)
		client := newTestPublicClient(server)

		_, err := client.OHLC(context.Background(), "NOPE", 60, 0)

		var apiErr *rest.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "EQuery:Unknown asset pair", apiErr.Codes[0])
	})

	t.Run("server errors are retried then surfaced", func(t *testing.T) {
		fake, server := newFakeKraken(t)
		fake.set("/0/public/Time", `<html>bad gateway</html>`, http.StatusBadGateway)
		client := newTestPublicClient(server)

		_, err := client.ServerTime(context.Background())

		var transportErr *rest.TransportError
		require.True(t, errors.As(err, &transportErr))
		assert.Equal(t, http.StatusBadGateway, transportErr.HTTPStatus)
		assert.Equal(t, 3, fake.hitCount("/0/public/Time"))
	})

	t.Run("unreachable host is a transport error", func(t *testing.T) {
		client := NewPublicClient("http://127.0.0.1:1", time.Second, WithRetry(0, 0, 0))

		_, err := client.ServerTime(context.Background())

		var transportErr *rest.TransportError
		assert.True(t, errors.As(err, &transportErr))
	})
}

type countingObserver struct {
	calls atomic.Int32
	last  atomic.Value
}

func (o *countingObserver) ObserveCall(endpoint, outcome string, _ time.Duration) {
	o.calls.Add(1)
	o.last.Store(endpoint + ":" + outcome)
}

func TestPublicClient_Observer(t *testing.T) {
	fake, server := newFakeKraken(t)
	observer := &countingObserver{}
	client := newTestPublicClient(server, WithPublicObserver(observer))

	_, err := client.ServerTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Time:ok", observer.last.Load())

	fake.set("/0/public/Time", `{"error":["EGeneral:Internal error"]}`, 0)
	_, err = client.ServerTime(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Time:api_error", observer.last.Load())
	assert.Equal(t, int32(2), observer.calls.Load())
}

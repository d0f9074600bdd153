package position

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookPutRefusesDuplicate(t *testing.T) {
	b := NewBook()
	rules := testRules()
	require.True(t, b.Put(New("BTC_USDT", dec("100"), dec("1"), rules)))
	assert.False(t, b.Put(New("BTC_USDT", dec("101"), dec("1"), rules)))
	assert.Equal(t, 1, b.Len())

	got, ok := b.Get("BTC_USDT")
	require.True(t, ok)
	assert.True(t, got.Record().Entry.Equal(dec("100")), "first position must survive")
}

func TestBookRemove(t *testing.T) {
	b := NewBook()
	b.Put(New("BTC_USDT", dec("100"), dec("1"), testRules()))
	b.Remove("BTC_USDT")
	_, ok := b.Get("BTC_USDT")
	assert.False(t, ok)
	assert.Empty(t, b.List())

	// removing twice is harmless
	b.Remove("BTC_USDT")
}

func TestBookConcurrentAccess(t *testing.T) {
	b := NewBook()
	rules := testRules()
	pairs := []string{"BTC_USDT", "ETH_USDT", "DOGE_USDT", "XRP_USDT"}

	var wg sync.WaitGroup
	for _, pair := range pairs {
		pair := pair
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Put(New(pair, dec("100"), dec("1"), rules))
			if p, ok := b.Get(pair); ok {
				p.Advance(rules, dec("101"))
			}
			b.List()
		}()
	}
	wg.Wait()
	assert.Equal(t, len(pairs), b.Len())
}

func TestBookTakeClaimsOnce(t *testing.T) {
	b := NewBook()
	b.Put(New("BTC_USDT", dec("100"), dec("1"), testRules()))

	pos, ok := b.Take("BTC_USDT")
	require.True(t, ok)
	assert.Equal(t, "BTC_USDT", pos.Pair())
	assert.Equal(t, 0, b.Len())

	_, ok = b.Take("BTC_USDT")
	assert.False(t, ok, "a second claim must lose")
}

func TestRecordValidate(t *testing.T) {
	good := New("BTC_USDT", dec("100"), dec("1"), testRules()).Record()
	require.NoError(t, good.Validate())

	for name, mangle := range map[string]func(*Record){
		"no pair":     func(r *Record) { r.Pair = "" },
		"zero entry":  func(r *Record) { r.Entry = decimal.Zero },
		"zero amount": func(r *Record) { r.Amount = decimal.Zero },
		"zero stop":   func(r *Record) { r.Stop = decimal.Zero },
		"zero peak":   func(r *Record) { r.Peak = decimal.Zero },
	} {
		t.Run(name, func(t *testing.T) {
			rec := good
			mangle(&rec)
			assert.Error(t, rec.Validate())
		})
	}
}

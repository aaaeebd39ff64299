package cache

import (
	"errors"
	"testing"
)

func TestBuildKey(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		params  Params
		wantErr error
	}{
		{
			name:   "no params",
			prefix: "market_data",
			params: nil,
		},
		{
			name:   "string and int params",
			prefix: "stock_data",
			params: Params{"symbol": "AAPL", "days": 30},
		},
		{
			name:   "bool and float params",
			prefix: "forecast",
			params: Params{"adjusted": true, "confidence": 0.95},
		},
		{
			name:   "list params",
			prefix: "sector_data",
			params: Params{"symbols": []string{"AAPL", "MSFT"}, "weights": []float64{0.6, 0.4}},
		},
		{
			name:    "nested map rejected",
			prefix:  "stock_data",
			params:  Params{"filter": map[string]string{"a": "b"}},
			wantErr: ErrInvalidParameterKind,
		},
		{
			name:    "nil value rejected",
			prefix:  "stock_data",
			params:  Params{"symbol": nil},
			wantErr: ErrInvalidParameterKind,
		},
		{
			name:    "nested list rejected",
			prefix:  "stock_data",
			params:  Params{"groups": []any{[]string{"AAPL"}}},
			wantErr: ErrInvalidParameterKind,
		},
		{
			name:    "struct value rejected",
			prefix:  "stock_data",
			params:  Params{"opts": struct{ A int }{A: 1}},
			wantErr: ErrInvalidParameterKind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := BuildKey(tt.prefix, tt.params)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("BuildKey() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildKey() unexpected error: %v", err)
			}
			if key == "" {
				t.Error("BuildKey() returned empty key")
			}
		})
	}
}

// TestBuildKey_OrderIndependence ensures permutations of the same logical
// parameter set collide to the same key.
func TestBuildKey_OrderIndependence(t *testing.T) {
	a := Params{"symbol": "AAPL", "period": "1y", "interval": "1d"}
	b := Params{"interval": "1d", "symbol": "AAPL", "period": "1y"}

	keyA, err := BuildKey("stock_data", a)
	if err != nil {
		t.Fatalf("BuildKey(a) failed: %v", err)
	}
	keyB, err := BuildKey("stock_data", b)
	if err != nil {
		t.Fatalf("BuildKey(b) failed: %v", err)
	}

	if keyA != keyB {
		t.Errorf("keys differ for same logical params: %s vs %s", keyA, keyB)
	}
}

func TestBuildKey_Determinism(t *testing.T) {
	params := Params{
		"symbol":   "AAPL",
		"period":   "1y",
		"interval": "1d",
		"adjusted": true,
		"weight":   0.25,
	}

	first, err := BuildKey("stock_data", params)
	if err != nil {
		t.Fatalf("BuildKey failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		key, err := BuildKey("stock_data", params)
		if err != nil {
			t.Fatalf("BuildKey failed on iteration %d: %v", i, err)
		}
		if key != first {
			t.Errorf("key[%d] = %v, want %v (not deterministic)", i, key, first)
		}
	}
}

func TestBuildKey_Discrimination(t *testing.T) {
	tests := []struct {
		name            string
		prefixA, prefixB string
		paramsA, paramsB Params
	}{
		{
			name:    "different prefixes",
			prefixA: "stock_data", prefixB: "stock_info",
			paramsA: Params{"symbol": "AAPL"}, paramsB: Params{"symbol": "AAPL"},
		},
		{
			name:    "different values",
			prefixA: "stock_data", prefixB: "stock_data",
			paramsA: Params{"symbol": "AAPL"}, paramsB: Params{"symbol": "MSFT"},
		},
		{
			name:    "different param names",
			prefixA: "stock_data", prefixB: "stock_data",
			paramsA: Params{"symbol": "AAPL"}, paramsB: Params{"ticker": "AAPL"},
		},
		{
			name:    "extra param",
			prefixA: "stock_data", prefixB: "stock_data",
			paramsA: Params{"symbol": "AAPL"}, paramsB: Params{"symbol": "AAPL", "page": 2},
		},
		{
			name:    "delimiters in values",
			prefixA: "stock_data", prefixB: "stock_data",
			paramsA: Params{"period": "P;symbol=B", "symbol": "A"},
			paramsB: Params{"period": "P", "symbol": "B;symbol=A"},
		},
		{
			name:    "delimiters in names",
			prefixA: "stock_data", prefixB: "stock_data",
			paramsA: Params{"a=1;b": "2"}, paramsB: Params{"a": "1;b=2"},
		},
		{
			name:    "delimiters in list elements",
			prefixA: "stock_data", prefixB: "stock_data",
			paramsA: Params{"symbols": []string{"A,B", "C"}},
			paramsB: Params{"symbols": []string{"A", "B,C"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keyA, err := BuildKey(tt.prefixA, tt.paramsA)
			if err != nil {
				t.Fatalf("BuildKey(a) failed: %v", err)
			}
			keyB, err := BuildKey(tt.prefixB, tt.paramsB)
			if err != nil {
				t.Fatalf("BuildKey(b) failed: %v", err)
			}
			if keyA == keyB {
				t.Errorf("distinct inputs produced identical key %s", keyA)
			}
		})
	}
}

// TestBuildKey_FloatRounding ensures representation noise below the fixed
// precision does not fragment keys, while genuine differences do.
func TestBuildKey_FloatRounding(t *testing.T) {
	same, err := BuildKey("forecast", Params{"rate": 0.1 + 0.2})
	if err != nil {
		t.Fatalf("BuildKey failed: %v", err)
	}
	want, err := BuildKey("forecast", Params{"rate": 0.3})
	if err != nil {
		t.Fatalf("BuildKey failed: %v", err)
	}
	if same != want {
		t.Errorf("0.1+0.2 and 0.3 produced different keys: %s vs %s", same, want)
	}

	other, err := BuildKey("forecast", Params{"rate": 0.300001})
	if err != nil {
		t.Fatalf("BuildKey failed: %v", err)
	}
	if other == want {
		t.Error("values differing at the rounding precision collided")
	}
}

func TestCanonicalValue_IntWidths(t *testing.T) {
	// All integer widths with the same value must canonicalize identically.
	variants := []any{int(42), int8(42), int16(42), int32(42), int64(42),
		uint(42), uint8(42), uint16(42), uint32(42), uint64(42)}

	want, err := canonicalValue("n", variants[0])
	if err != nil {
		t.Fatalf("canonicalValue failed: %v", err)
	}
	for _, v := range variants[1:] {
		got, err := canonicalValue("n", v)
		if err != nil {
			t.Fatalf("canonicalValue(%T) failed: %v", v, err)
		}
		if got != want {
			t.Errorf("canonicalValue(%T) = %q, want %q", v, got, want)
		}
	}
}

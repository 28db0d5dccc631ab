package codec

import (
	"testing"
)

// benchmarkMessages returns a set of messages for targeted benchmarking
func benchmarkMessages() map[string]sample {
	return map[string]sample{
		"Empty": {
			Kind: "success",
		},
		"SmallKeyOnly": {
			Kind: "get",
			Key:  "k",
		},
		"LargeKeyOnly": {
			Kind: "get",
			Key:  "this-is-a-very-large-key-that-could-be-used-for-storing-data-or-as-a-document-id-in-some-cases",
		},
		"MediumValue": {
			Kind:  "set",
			Key:   "key",
			Value: []byte("medium length value for testing serialization"),
		},
		"LargeValue": {
			Kind:  "set",
			Key:   "key",
			Value: make([]byte, 1024), // 1KB of data
		},
		"CompleteMessage": {
			Kind:  "acquire",
			Key:   "complete-test-key",
			Value: []byte("test-value-data"),
			TTL:   10000,
			Ok:    true,
			Tags:  []string{"alpha", "beta", "gamma"},
			Meta:  map[string]int{"retries": 3, "shard": 12},
		},
	}
}

// BenchmarkEncode measures the encoding speed of every codec
func BenchmarkEncode(b *testing.B) {
	for codecName, factory := range testCodecs {
		c := factory()
		for msgName, msg := range benchmarkMessages() {
			b.Run(codecName+"/"+msgName, func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					if _, err := c.Encode(msg); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

// BenchmarkDecode measures the decoding speed of every codec
func BenchmarkDecode(b *testing.B) {
	for codecName, factory := range testCodecs {
		c := factory()
		for msgName, msg := range benchmarkMessages() {
			data, err := c.Encode(msg)
			if err != nil {
				b.Fatal(err)
			}
			b.Run(codecName+"/"+msgName, func(b *testing.B) {
				b.ReportAllocs()
				b.SetBytes(int64(len(data)))
				for i := 0; i < b.N; i++ {
					var out sample
					if err := c.Decode(data, &out); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

package ebpfmap

import "testing"

func BenchmarkHashTableLookup_16(b *testing.B)   { benchmarkHashTableLookup(b, 16) }
func BenchmarkHashTableLookup_256(b *testing.B)  { benchmarkHashTableLookup(b, 256) }
func BenchmarkHashTableLookup_4096(b *testing.B) { benchmarkHashTableLookup(b, 4096) }

func benchmarkHashTableLookup(b *testing.B, entries uint32) {
	m, err := New(Attr{Type: HashTable, KeySize: 4, ValueSize: 8, MaxEntries: entries})
	if err != nil {
		b.Fatal(err)
	}
	defer m.Deinit()
	for i := uint32(0); i < entries; i++ {
		if err := m.UpdateFromUser(key32(i), key32(i), Any); err != nil {
			b.Fatal(err)
		}
	}
	k := key32(entries / 2)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.LookupFromUser(k); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkArrayLookup_16(b *testing.B)   { benchmarkArrayLookup(b, 16) }
func BenchmarkArrayLookup_4096(b *testing.B) { benchmarkArrayLookup(b, 4096) }

func benchmarkArrayLookup(b *testing.B, entries uint32) {
	m, err := New(Attr{Type: Array, KeySize: 4, ValueSize: 8, MaxEntries: entries})
	if err != nil {
		b.Fatal(err)
	}
	defer m.Deinit()
	for i := uint32(0); i < entries; i++ {
		if err := m.UpdateFromUser(key32(i), key32(i), Any); err != nil {
			b.Fatal(err)
		}
	}
	k := key32(entries / 2)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.LookupFromUser(k); err != nil {
			b.Fatal(err)
		}
	}
}

package models

import (
	"reflect"
	"testing"
)

func TestNormalizeDedupsSymbols(t *testing.T) {
	s := Settings{Symbols: []string{"BTCUSDT", "ETHUSDT", "BTCUSDT", "SOLUSDT", "ETHUSDT"}}
	s.Normalize()

	want := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	if !reflect.DeepEqual(s.Symbols, want) {
		t.Fatalf("symbols = %v, want %v", s.Symbols, want)
	}
}

func TestApplyDedupsSymbols(t *testing.T) {
	s := Settings{Symbols: []string{"BTCUSDT"}}
	s.Apply(SettingsPatch{Symbols: []string{"ETHUSDT", "ETHUSDT", "XRPUSDT"}})

	want := []string{"ETHUSDT", "XRPUSDT"}
	if !reflect.DeepEqual(s.Symbols, want) {
		t.Fatalf("symbols = %v, want %v", s.Symbols, want)
	}
}

func TestApplyKeepsUnsetFields(t *testing.T) {
	s := Settings{MaxPositions: 3, TrailingPct: 2}
	five := 5
	s.Apply(SettingsPatch{MaxPositions: &five})

	if s.MaxPositions != 5 || s.TrailingPct != 2 {
		t.Fatalf("got max=%d trail=%v, want 5 / 2", s.MaxPositions, s.TrailingPct)
	}
}

package main

import "testing"

func TestShareTTLDefaults(t *testing.T) {
	if err := shareSingleCmd.Flags().Parse(nil); err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if err := shareMultiCmd.Flags().Parse(nil); err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	// Each subcommand owns its ttl variable; registering multi's default
	// must not clobber single's.
	if singleTTLDays != 7 {
		t.Errorf("share single default ttl = %d, want 7", singleTTLDays)
	}
	if multiTTLDays != 30 {
		t.Errorf("share multi default ttl = %d, want 30", multiTTLDays)
	}

	if got := shareSingleCmd.Flags().Lookup("ttl").DefValue; got != "7" {
		t.Errorf("share single advertised default = %s, want 7", got)
	}
	if got := shareMultiCmd.Flags().Lookup("ttl").DefValue; got != "30" {
		t.Errorf("share multi advertised default = %s, want 30", got)
	}
}

func TestShareTTLOverride(t *testing.T) {
	if err := shareSingleCmd.Flags().Parse([]string{"--ttl", "14"}); err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	defer shareSingleCmd.Flags().Set("ttl", "7")

	if singleTTLDays != 14 {
		t.Errorf("share single --ttl 14 = %d, want 14", singleTTLDays)
	}
	if multiTTLDays != 30 {
		t.Errorf("share multi ttl changed to %d by single's flag, want 30", multiTTLDays)
	}
}

package calls

import "testing"

func TestValidate_RequiresCoreFields(t *testing.T) {
	c := Context{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for empty context")
	}

	c = Context{PhoneNumber: "+15551230001", CallType: "fax", MedicineName: "Aspirin"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for unknown call_type")
	}

	c.CallType = CallTypeReminder
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestWithRetry_DerivesNewContext(t *testing.T) {
	c := Context{
		PhoneNumber:        "+15551230001",
		CallType:           CallTypeReminder,
		MedicineName:       "Aspirin",
		HeadOfFamilyPhones: []string{"+15551230002"},
	}

	r := c.WithRetry()
	if r.RetryAttempts != 1 {
		t.Fatalf("expected retry_attempts 1, got %d", r.RetryAttempts)
	}
	if c.RetryAttempts != 0 {
		t.Fatalf("original context must not change")
	}

	r.HeadOfFamilyPhones[0] = "+19998887777"
	if c.HeadOfFamilyPhones[0] != "+15551230002" {
		t.Fatalf("backup list must be cloned, not shared")
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	c := Context{
		PhoneNumber:        "+15551230001",
		CallType:           CallTypeBuy,
		UserName:           "Ravi",
		UserType:           UserTypeSenior,
		MedicineName:       "Metformin",
		HeadOfFamilyPhones: []string{"+15551230002", "+15551230003"},
		RemainingCount:     4,
		DaysSupplyLeft:     2,
	}

	meta, err := c.Marshal()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	got, err := ParseMetadata(meta)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got.PhoneNumber != c.PhoneNumber || got.MedicineName != c.MedicineName {
		t.Fatalf("round trip lost identity fields: %+v", got)
	}
	if len(got.HeadOfFamilyPhones) != 2 {
		t.Fatalf("expected 2 backup contacts, got %d", len(got.HeadOfFamilyPhones))
	}
	if got.RemainingCount != 4 || got.DaysSupplyLeft != 2 {
		t.Fatalf("buy extras not carried: %+v", got)
	}
}

func TestParseMetadata_RejectsInvalid(t *testing.T) {
	if _, err := ParseMetadata("{not json"); err == nil {
		t.Fatalf("expected error for malformed metadata")
	}
	if _, err := ParseMetadata(`{"phone_number":""}`); err == nil {
		t.Fatalf("expected error for missing phone")
	}
}

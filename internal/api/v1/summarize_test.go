package v1

import (
	"encoding/json"
	"strings"
	"testing"
)

func validRequest() SummarizeRequest {
	return SummarizeRequest{
		SubjectID:             "acc-001",
		InstanceURL:           "https://example.my.crm.test",
		AccessToken:           "tok",
		Query:                 "SELECT Id, Subject, CreatedDate FROM Task ORDER BY CreatedDate ASC",
		ObjectName:            "Timeline_Summary__c",
		MonthlyInstructions:   "Summarize the month.",
		QuarterlyInstructions: "Summarize the quarter.",
		MonthlyFunction:       FunctionSpec{Name: "store_monthly"},
		QuarterlyFunction:     FunctionSpec{Name: "store_quarterly"},
	}
}

func TestSummarizeRequest_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SummarizeRequest)
		wantErr string
	}{
		{name: "valid request", mutate: func(r *SummarizeRequest) {}},
		{
			name:    "missing subject",
			mutate:  func(r *SummarizeRequest) { r.SubjectID = " " },
			wantErr: "subjectId is required",
		},
		{
			name:    "missing instance url",
			mutate:  func(r *SummarizeRequest) { r.InstanceURL = "" },
			wantErr: "instanceUrl is required",
		},
		{
			name:    "missing query",
			mutate:  func(r *SummarizeRequest) { r.Query = "" },
			wantErr: "query is required",
		},
		{
			name:    "missing object name",
			mutate:  func(r *SummarizeRequest) { r.ObjectName = "" },
			wantErr: "objectName is required",
		},
		{
			name:    "missing monthly function name",
			mutate:  func(r *SummarizeRequest) { r.MonthlyFunction.Name = "" },
			wantErr: "monthlyFunction.name is required",
		},
		{
			name:    "negative recency window",
			mutate:  func(r *SummarizeRequest) { r.RecencyMonths = -1 },
			wantErr: "recencyMonths must be >= 0",
		},
		{
			name: "callback flag without url",
			mutate: func(r *SummarizeRequest) {
				r.SendCallback = true
				r.CallbackURL = ""
			},
			wantErr: "callbackUrl is required",
		},
		{
			name: "callback flag with url",
			mutate: func(r *SummarizeRequest) {
				r.SendCallback = true
				r.CallbackURL = "https://example.test/cb"
			},
		},
		{
			name:   "missing access token passes envelope validation",
			mutate: func(r *SummarizeRequest) { r.AccessToken = "" },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)

			err := req.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestSummarizeRequest_JSONRoundTrip(t *testing.T) {
	raw := `{
		"subjectId": "acc-001",
		"instanceUrl": "https://example.my.crm.test",
		"query": "SELECT Id FROM Task",
		"objectName": "Timeline_Summary__c",
		"monthlyInstructions": "m",
		"quarterlyInstructions": "q",
		"monthlyFunction": {"name": "store_monthly", "parameters": {"type": "object"}},
		"quarterlyFunction": {"name": "store_quarterly"},
		"existingSummaries": {"Mar 2024": "a01"},
		"recencyMonths": 3
	}`

	var req SummarizeRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.MonthlyFunction.Parameters["type"] != "object" {
		t.Fatalf("function parameters not preserved: %#v", req.MonthlyFunction.Parameters)
	}
	if req.Existing["Mar 2024"] != "a01" {
		t.Fatalf("existing index not preserved: %#v", req.Existing)
	}
	if req.RecencyMonths != 3 {
		t.Fatalf("expected recencyMonths 3, got %d", req.RecencyMonths)
	}
}

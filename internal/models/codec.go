package models

import (
	"encoding/json"
	"fmt"
)

// EncodeRecord serializes a record with its kind alongside the record's own
// fields, e.g. {"kind":"battle","task":...}.
func EncodeRecord(r Record) ([]byte, error) {
	switch v := r.(type) {
	case *BattleRecord:
		return json.Marshal(struct {
			Kind RecordKind `json:"kind"`
			*BattleRecord
		}{v.Kind(), v})
	case *CollaborationRecord:
		return json.Marshal(struct {
			Kind RecordKind `json:"kind"`
			*CollaborationRecord
		}{v.Kind(), v})
	case *WorkflowRun:
		return json.Marshal(struct {
			Kind RecordKind `json:"kind"`
			*WorkflowRun
		}{v.Kind(), v})
	default:
		return nil, fmt.Errorf("unsupported record type %T", r)
	}
}

// DecodeRecord is the inverse of EncodeRecord.
func DecodeRecord(data []byte) (Record, error) {
	var head struct {
		Kind RecordKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse record: %w", err)
	}

	var r Record
	switch head.Kind {
	case RecordKindBattle:
		r = &BattleRecord{}
	case RecordKindCollaboration:
		r = &CollaborationRecord{}
	case RecordKindWorkflowRun:
		r = &WorkflowRun{}
	default:
		return nil, fmt.Errorf("unknown record kind %q", head.Kind)
	}

	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("failed to parse %s record: %w", head.Kind, err)
	}
	return r, nil
}

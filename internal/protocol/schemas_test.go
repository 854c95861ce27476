package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	reject := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err == nil {
			t.Fatalf("expected validation failure, got none")
		}
	}

	placeBlocksSchema := compile("place-blocks.schema.json")
	placeStructureSchema := compile("place-structure.schema.json")
	registerSchema := compile("register.schema.json")
	loginSchema := compile("login.schema.json")
	operationSchema := compile("operation-event.schema.json")

	var placeBlocks any
	_ = json.Unmarshal([]byte(`{
	  "start":[0,64,0],
	  "end":[10,70,10],
	  "blocks":["minecraft:stone"],
	  "do_block_updates":false
	}`), &placeBlocks)
	validate(placeBlocksSchema, placeBlocks)

	var placeBlocksObj any
	_ = json.Unmarshal([]byte(`{
	  "start":{"x":0,"y":64,"z":0},
	  "end":{"x":2,"y":66,"z":2},
	  "blocks":["minecraft:stone","minecraft:dirt"]
	}`), &placeBlocksObj)
	validate(placeBlocksSchema, placeBlocksObj)

	var noBlocks any
	_ = json.Unmarshal([]byte(`{"start":[0,0,0],"end":[1,1,1],"blocks":[]}`), &noBlocks)
	reject(placeBlocksSchema, noBlocks)

	var placeStructure any
	_ = json.Unmarshal([]byte(`{
	  "position":[10,64,10],
	  "nbt_b64":"CgAA",
	  "rotation":90,
	  "mirror":"NONE",
	  "include_entities":true
	}`), &placeStructure)
	validate(placeStructureSchema, placeStructure)

	var badRotation any
	_ = json.Unmarshal([]byte(`{"position":[0,0,0],"nbt_b64":"CgAA","rotation":45}`), &badRotation)
	reject(placeStructureSchema, badRotation)

	var register any
	_ = json.Unmarshal([]byte(`{
	  "email":"steve@example.com",
	  "password":"hunter2hunter2",
	  "username":"steve"
	}`), &register)
	validate(registerSchema, register)

	var weak any
	_ = json.Unmarshal([]byte(`{"email":"steve@example.com","password":"short"}`), &weak)
	reject(registerSchema, weak)

	var login any
	_ = json.Unmarshal([]byte(`{"email":"steve@example.com","password":"hunter2hunter2"}`), &login)
	validate(loginSchema, login)

	var operation any
	_ = json.Unmarshal([]byte(`{
	  "type":"OPERATION",
	  "protocol_version":"1.0",
	  "event":{
	    "id":"2f0c1c4e-7d39-4be1-9d63-1d2c8f0a9b10",
	    "kind":"blocks",
	    "user_id":"u1",
	    "region":{"offset":{"x":0,"y":64,"z":0},"size":{"x":10,"y":6,"z":10}},
	    "block_count":600,
	    "ok":true,
	    "at":"2026-08-29T12:00:00Z"
	  }
	}`), &operation)
	validate(operationSchema, operation)
}

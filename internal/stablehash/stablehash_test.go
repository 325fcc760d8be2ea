package stablehash

import "testing"

// The wire format depends on these exact values; they match the reference
// protocol's published constants.
func TestMessageIDPinnedConstants(t *testing.T) {
	cases := []struct {
		name string
		want uint16
	}{
		{"Mirror.TimeSnapshotMessage", 57097},
		{"Mirror.ReadyMessage", 43708},
		{"Mirror.NotReadyMessage", 43378},
		{"Mirror.AddPlayerMessage", 49414},
		{"Mirror.SceneMessage", 3552},
		{"Mirror.CommandMessage", 39124},
		{"Mirror.RpcMessage", 40238},
		{"Mirror.NetworkPingMessage", 17487},
		{"Mirror.NetworkPongMessage", 27095},
	}
	for _, tc := range cases {
		if got := MessageID(tc.name); got != tc.want {
			t.Fatalf("expected MessageID(%q) = %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestFunctionHashPinnedConstants(t *testing.T) {
	cases := []struct {
		name string
		full uint32
		want uint16
	}{
		{
			"System.Void Mirror.NetworkTransformBase::CmdTeleport(UnityEngine.Vector3)",
			2109034929,
			20913,
		},
		{
			// Full 32-bit hash pinned by the reference implementation.
			"System.Void Mirror.NetworkTransformBase::RpcTeleport(UnityEngine.Vector3)",
			2361598560, // -1933368736 as unsigned
			8800,
		},
		{
			"System.Void Mirror.NetworkTransformBase::RpcTeleport(UnityEngine.Vector3,UnityEngine.Quaternion)",
			2619367435, // -1675599861 as unsigned
			24587,
		},
	}
	for _, tc := range cases {
		if got := Hash32(tc.name); got != tc.full {
			t.Fatalf("expected Hash32(%q) = %d, got %d", tc.name, tc.full, got)
		}
		if got := FunctionHash(tc.name); got != tc.want {
			t.Fatalf("expected FunctionHash(%q) = %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestID64Stable(t *testing.T) {
	a := ID64("scenes/arena")
	b := ID64("scenes/arena")
	if a != b {
		t.Fatalf("expected stable id, got %d and %d", a, b)
	}
	if a == ID64("scenes/lobby") {
		t.Fatalf("expected distinct ids for distinct names")
	}
}

package config

import "testing"

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		raw       string
		wantTopic string
		wantHost  string
	}{
		{"imu_data", "imu_data", ""},
		{"imu_data@10.0.0.2:7000", "imu_data", "10.0.0.2:7000"},
	}
	for _, c := range cases {
		got := ParseEndpoint(c.raw)
		if got.Topic != c.wantTopic || got.Host != c.wantHost {
			t.Errorf("ParseEndpoint(%q) = %+v, want topic=%q host=%q", c.raw, got, c.wantTopic, c.wantHost)
		}
	}
}

func TestSafeName(t *testing.T) {
	if got := SafeName("foo/bar baz"); got != "foo_bar_baz" {
		t.Errorf("SafeName = %q, want foo_bar_baz", got)
	}
}

func TestRuntimeTopicPath(t *testing.T) {
	rt := Runtime{SessionID: "sess1", ShmRoot: "/dev/shm/horus"}
	local := rt.TopicPath("odom/filtered", false)
	if local != "/dev/shm/horus/sessions/sess1/topics/odom_filtered" {
		t.Errorf("local TopicPath = %q", local)
	}
	global := rt.TopicPath("clock", true)
	if global != "/dev/shm/horus/topics/clock" {
		t.Errorf("global TopicPath = %q", global)
	}
}

package domoticz

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
)

// fakeDomoticz emulates the json.htm endpoint with an in-memory
// device and plan registry.
type fakeDomoticz struct {
	t        *testing.T
	devices  map[int]string // idx -> name
	used     map[int]bool
	created  map[string]int // name -> createdevice count
	plans    map[int]string
	planped  map[int][]int // plan idx -> device idxs
	nextIdx  int
	nextPlan int
	notified []string
}

func newFakeDomoticz(t *testing.T) *fakeDomoticz {
	return &fakeDomoticz{
		t:        t,
		devices:  map[int]string{},
		used:     map[int]bool{},
		created:  map[string]int{},
		plans:    map[int]string{},
		planped:  map[int][]int{},
		nextIdx:  100,
		nextPlan: 1,
	}
}

func (f *fakeDomoticz) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/json.htm" {
			http.NotFound(w, r)
			return
		}

		switch {
		case q.Get("type") == "createdevice":
			f.nextIdx++
			f.devices[f.nextIdx] = q.Get("sensorname")
			f.created[q.Get("sensorname")]++
			fmt.Fprintf(w, `{"status":"OK","title":"CreateDevice","idx":"%d"}`, f.nextIdx)

		case q.Get("param") == "getdevices":
			// Domoticz hides unused devices when used=true is passed.
			usedOnly := q.Get("used") == "true"
			fmt.Fprint(w, `{"status":"OK","result":[`)
			first := true
			for idx, name := range f.devices {
				if usedOnly && !f.used[idx] {
					continue
				}
				if !first {
					fmt.Fprint(w, ",")
				}
				first = false
				fmt.Fprintf(w, `{"idx":"%d","Name":%q}`, idx, name)
			}
			fmt.Fprint(w, `]}`)

		case q.Get("param") == "setused":
			idx, _ := strconv.Atoi(q.Get("idx"))
			f.used[idx] = q.Get("used") == "true"
			fmt.Fprint(w, `{"status":"OK"}`)

		case q.Get("param") == "udevice":
			fmt.Fprint(w, `{"status":"OK"}`)

		case q.Get("param") == "getplans":
			fmt.Fprint(w, `{"status":"OK","result":[`)
			first := true
			for idx, name := range f.plans {
				if !first {
					fmt.Fprint(w, ",")
				}
				first = false
				fmt.Fprintf(w, `{"idx":"%d","Name":%q}`, idx, name)
			}
			fmt.Fprint(w, `]}`)

		case q.Get("param") == "addplan":
			f.plans[f.nextPlan] = q.Get("name")
			f.nextPlan++
			fmt.Fprint(w, `{"status":"OK"}`)

		case q.Get("param") == "addplanactivedevice":
			planIdx, _ := strconv.Atoi(q.Get("idx"))
			deviceIdx, _ := strconv.Atoi(q.Get("activeidx"))
			f.planped[planIdx] = append(f.planped[planIdx], deviceIdx)
			fmt.Fprint(w, `{"status":"OK"}`)

		case q.Get("param") == "sendnotification":
			f.notified = append(f.notified, q.Get("body"))
			fmt.Fprint(w, `{"status":"OK"}`)

		case q.Get("param") == "getsettings":
			fmt.Fprint(w, `{"status":"OK","Location":{"Latitude":"52.37","Longitude":"4.89"}}`)

		default:
			f.t.Errorf("unexpected call: %s", r.URL.RawQuery)
			fmt.Fprint(w, `{"status":"ERR"}`)
		}
	})
}

func TestUpdateDevice(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		fmt.Fprint(w, `{"status":"OK"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5, zerolog.Nop())
	if err := c.UpdateDevice(context.Background(), 42, 1, "78.5"); err != nil {
		t.Fatalf("UpdateDevice: %v", err)
	}

	for key, want := range map[string]string{
		"type":   "command",
		"param":  "udevice",
		"idx":    "42",
		"nvalue": "1",
		"svalue": "78.5",
	} {
		if got.Get(key) != want {
			t.Errorf("%s = %q, want %q", key, got.Get(key), want)
		}
	}
}

func TestAPIErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ERR","message":"device does not exist"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5, zerolog.Nop())
	err := c.UpdateDevice(context.Background(), 42, 0, "")
	if err == nil {
		t.Fatal("expected error for status ERR")
	}
}

func TestEnsureDevicesCreatesMissing(t *testing.T) {
	fake := newFakeDomoticz(t)
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewClient(srv.URL, 5, zerolog.Nop())
	mapping, err := c.EnsureDevices(context.Background(), "ZS EV 1234")
	if err != nil {
		t.Fatalf("EnsureDevices: %v", err)
	}

	defs := Definitions()
	if len(mapping) != len(defs) {
		t.Fatalf("mapped %d devices, want %d", len(mapping), len(defs))
	}
	if len(fake.devices) != len(defs) {
		t.Fatalf("created %d devices, want %d", len(fake.devices), len(defs))
	}
	if name := fake.devices[mapping[UnitBatteryLevel]]; name != "ZS EV 1234 Battery Level" {
		t.Errorf("battery level device name = %q", name)
	}

	// A room plan named after the vehicle holds every device.
	if len(fake.plans) != 1 {
		t.Fatalf("plans = %v, want one", fake.plans)
	}
	for idx, name := range fake.plans {
		if name != "ZS-EV-1234" {
			t.Errorf("plan name = %q", name)
		}
		if len(fake.planped[idx]) != len(defs) {
			t.Errorf("plan holds %d devices, want %d", len(fake.planped[idx]), len(defs))
		}
	}
}

func TestEnsureDevicesReusesExisting(t *testing.T) {
	fake := newFakeDomoticz(t)
	fake.devices[7] = "ZS EV 1234 Battery Level"
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewClient(srv.URL, 5, zerolog.Nop())
	mapping, err := c.EnsureDevices(context.Background(), "ZS EV 1234")
	if err != nil {
		t.Fatalf("EnsureDevices: %v", err)
	}
	if mapping[UnitBatteryLevel] != 7 {
		t.Errorf("existing device not reused: idx %d", mapping[UnitBatteryLevel])
	}
}

func TestEnsureDevicesIdempotent(t *testing.T) {
	fake := newFakeDomoticz(t)
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewClient(srv.URL, 5, zerolog.Nop())
	for i := 0; i < 3; i++ {
		if _, err := c.EnsureDevices(context.Background(), "ZS EV 1234"); err != nil {
			t.Fatalf("EnsureDevices run %d: %v", i, err)
		}
	}

	// Every device, including unused ones hidden from the dashboard,
	// must be rediscovered by name instead of recreated.
	for name, n := range fake.created {
		if n != 1 {
			t.Errorf("%q created %d times across 3 polls, want 1", name, n)
		}
	}
	if len(fake.devices) != len(Definitions()) {
		t.Errorf("device table holds %d devices, want %d", len(fake.devices), len(Definitions()))
	}
	if len(fake.plans) != 1 {
		t.Errorf("plans = %v, want one", fake.plans)
	}

	// The unused definition stays hidden, the rest are marked used.
	var maxRangeIdx, batteryIdx int
	for idx, name := range fake.devices {
		switch name {
		case "ZS EV 1234 Max Range":
			maxRangeIdx = idx
		case "ZS EV 1234 Battery Level":
			batteryIdx = idx
		}
	}
	if fake.used[maxRangeIdx] {
		t.Error("max range device marked used, want hidden")
	}
	if !fake.used[batteryIdx] {
		t.Error("battery level device not marked used")
	}
}

func TestHomeLocation(t *testing.T) {
	fake := newFakeDomoticz(t)
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewClient(srv.URL, 5, zerolog.Nop())
	lat, lon, err := c.HomeLocation(context.Background())
	if err != nil {
		t.Fatalf("HomeLocation: %v", err)
	}
	if lat != 52.37 || lon != 4.89 {
		t.Errorf("home = %v,%v", lat, lon)
	}
}

func TestSendNotification(t *testing.T) {
	fake := newFakeDomoticz(t)
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewClient(srv.URL, 5, zerolog.Nop())
	if err := c.SendNotification(context.Background(), "MG iSmart", "Charging stopped"); err != nil {
		t.Fatalf("SendNotification: %v", err)
	}
	if len(fake.notified) != 1 || fake.notified[0] != "Charging stopped" {
		t.Errorf("notifications = %v", fake.notified)
	}
}

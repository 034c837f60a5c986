package audit

import (
	"context"
	"fmt"
	"testing"

	"github.com/ai-devops/autoheal/internal/domain"
	"go.uber.org/zap"
)

func TestRecorder_Idempotent(t *testing.T) {
	r := New(10, zap.NewNop())
	ctx := context.Background()

	inc := domain.Incident{ID: "a", State: domain.StateRCAInProgress}
	if err := r.LogIncident(ctx, inc); err != nil {
		t.Fatal(err)
	}
	inc.State = domain.StateResolved
	if err := r.LogIncident(ctx, inc); err != nil {
		t.Fatal(err)
	}

	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	e, ok := r.Get("a")
	if !ok {
		t.Fatal("Get() missing incident")
	}
	if e.Incident.State != domain.StateResolved || e.Writes != 2 {
		t.Errorf("entry = %+v, want latest state and 2 writes", e)
	}
}

func TestRecorder_CapacityAndOrder(t *testing.T) {
	r := New(3, zap.NewNop())
	for i := 0; i < 5; i++ {
		r.LogIncident(context.Background(), domain.Incident{ID: fmt.Sprintf("inc-%d", i)})
	}

	if _, ok := r.Get("inc-1"); ok {
		t.Error("inc-1 should have been evicted")
	}

	list := r.List(0)
	if len(list) != 3 {
		t.Fatalf("len(List) = %d, want 3", len(list))
	}
	want := []string{"inc-4", "inc-3", "inc-2"}
	for i, id := range want {
		if list[i].Incident.ID != id {
			t.Errorf("List()[%d] = %s, want %s", i, list[i].Incident.ID, id)
		}
	}

	if got := r.List(1); len(got) != 1 || got[0].Incident.ID != "inc-4" {
		t.Errorf("List(1) = %+v", got)
	}
}

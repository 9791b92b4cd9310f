package client

import "testing"

func TestLocal_DocumentWorkflow(t *testing.T) {
	c := NewLocal(newSession(t))
	exerciseClient(t, c)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
}

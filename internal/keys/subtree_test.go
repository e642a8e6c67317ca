package keys

import "testing"

func TestSubtreeKeyManagerResolveMostSpecific(t *testing.T) {
	master, err := GenerateDEK()
	if err != nil {
		t.Fatal(err)
	}
	mgr := NewSubtreeKeyManager(master)

	photosDEK, err := mgr.GenerateSubtree("/photos/")
	if err != nil {
		t.Fatal(err)
	}
	vacationDEK, err := mgr.GenerateSubtree("/photos/vacation/")
	if err != nil {
		t.Fatal(err)
	}

	if got := mgr.Resolve("/photos/vacation/beach.jpg"); string(got) != string(vacationDEK) {
		t.Fatal("expected the most specific subtree prefix to win")
	}
	if got := mgr.Resolve("/photos/cat.jpg"); string(got) != string(photosDEK) {
		t.Fatal("expected the /photos/ subtree DEK for a file directly under it")
	}
	if got := mgr.Resolve("/docs/report.pdf"); string(got) != string(master) {
		t.Fatal("expected the master DEK when no subtree prefix matches")
	}
}

func TestSubtreeRotateReplacesKey(t *testing.T) {
	master, err := GenerateDEK()
	if err != nil {
		t.Fatal(err)
	}
	mgr := NewSubtreeKeyManager(master)
	old, err := mgr.GenerateSubtree("/shared/")
	if err != nil {
		t.Fatal(err)
	}

	gotOld, gotNew, err := mgr.RotateSubtree("/shared/")
	if err != nil {
		t.Fatal(err)
	}
	if string(gotOld) != string(old) {
		t.Fatal("expected RotateSubtree to return the prior DEK")
	}
	if string(gotNew) == string(old) {
		t.Fatal("expected RotateSubtree to install a fresh DEK")
	}
	if got := mgr.Resolve("/shared/doc.txt"); string(got) != string(gotNew) {
		t.Fatal("expected subsequent resolves to see the new subtree DEK")
	}
}

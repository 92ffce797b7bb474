package cwrap

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// Headers matching fixture(), so the generated wrappers compile against them.
var fixtureHeaders = map[string]string{
	"point.h": `#pragma once
struct Point {
    int x;
    int y;
    Point(int x, int y) : x(x), y(y) {}
    Point operator+(const Point& other) const { return Point(x + other.x, y + other.y); }
};
inline Point operator-(const Point& a, const Point& b) { return Point(a.x - b.x, a.y - b.y); }
`,
	"zoo.h": `#pragma once
class Animal {
public:
    virtual ~Animal() {}
    virtual int speak() const { return 0; }
    int legs() { return 4; }
};
class Dog : public Animal {
public:
    Dog() {}
    int speak() const override { return 1; }
};
class Cat : public Animal {
public:
    Cat() {}
    int speak() const override { return 2; }
};
`,
	"geo.h": `#pragma once
namespace geo {
enum Align { Left, Right };
inline void place(int, Align = Left) {}
}
`,
}

const zooMain = `#include <cstdio>
#include "geometry_zoo.h"

int main() {
    Dog* dog = Dog_new();
    Cat* cat = Cat_new();
    int d = Animal_speak(Dog_static_upcast_Animal(dog));
    int c = Animal_speak(Cat_static_upcast_Animal(cat));
    std::printf("%d %d\n", d, c);
    Dog_delete(dog);
    Cat_delete(cat);
    return 0;
}
`

func TestVirtualDispatchCompiles(t *testing.T) {
	cxx, err := exec.LookPath("c++")
	if err != nil {
		t.Skip("no C++ compiler on PATH")
	}
	tree, _ := emit(t, fixture())

	dir := t.TempDir()
	for path, content := range tree {
		if err := os.WriteFile(filepath.Join(dir, path), content, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	for name, content := range fixtureHeaders {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "main.cpp"), []byte(zooMain), 0o644); err != nil {
		t.Fatal(err)
	}

	bin := filepath.Join(dir, "zoo")
	cmd := exec.Command(cxx, "-std=c++11", "-I", dir, "-o", bin,
		filepath.Join(dir, "main.cpp"), filepath.Join(dir, "geometry_zoo.cpp"))
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("compiling the zoo wrappers: %v\n%s", err, out)
	}
	out, err := exec.Command(bin).CombinedOutput()
	if err != nil {
		t.Fatalf("running the zoo program: %v\n%s", err, out)
	}
	fields := strings.Fields(string(out))
	if len(fields) != 2 {
		t.Fatalf("unexpected output %q", out)
	}
	if fields[0] != "1" || fields[1] != "2" {
		t.Errorf("Animal_speak through a base pointer = %s for Dog, %s for Cat; want 1 and 2", fields[0], fields[1])
	}
	if fields[0] == fields[1] {
		t.Error("Dog and Cat speak alike through a base pointer")
	}
}

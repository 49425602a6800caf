package money

import "testing"

func TestParseLimitDollarSign(t *testing.T) {
	t.Parallel()
	p, err := ParseLimit("$1,234.56")
	if err != nil {
		t.Fatalf("ParseLimit: %v", err)
	}
	if p.Cents() != 123456 {
		t.Errorf("Cents() = %d, want 123456", p.Cents())
	}
	if got := p.String(); got != "$1,234.56" {
		t.Errorf("String() = %q, want $1,234.56", got)
	}
}

func TestParseLimitRoundsHalfAwayFromZero(t *testing.T) {
	t.Parallel()
	cases := map[string]int64{
		"10.005":  1001, // .005 rounds away from zero, not to even
		"10.015":  1002,
		"-10.005": -1001,
	}
	for in, want := range cases {
		p, err := ParseLimit(in)
		if err != nil {
			t.Fatalf("ParseLimit(%q): %v", in, err)
		}
		if p.Cents() != want {
			t.Errorf("ParseLimit(%q).Cents() = %d, want %d", in, p.Cents(), want)
		}
	}
}

func TestFlyweightReturnsSameInstance(t *testing.T) {
	t.Parallel()
	a := FromCents(1000)
	b := FromCents(1000)
	if a != b {
		t.Error("FromCents did not return the same flyweight instance")
	}
}

func TestMKTSingleton(t *testing.T) {
	t.Parallel()
	if MKT() != MKT() {
		t.Error("MKT() did not return a singleton")
	}
	if !MKT().IsMarket() {
		t.Error("MKT().IsMarket() = false")
	}
	if MKT().String() != "MKT" {
		t.Errorf("MKT().String() = %q, want MKT", MKT().String())
	}
}

func TestComparisonsFalseWhenEitherSideIsMarket(t *testing.T) {
	t.Parallel()
	ten := FromCents(1000)
	mkt := MKT()

	if ten.Equals(mkt) || mkt.Equals(ten) {
		t.Error("Equals should be false when either side is MKT")
	}
	if ten.GreaterThan(mkt) || mkt.GreaterThan(ten) {
		t.Error("GreaterThan should be false when either side is MKT")
	}
	if ten.LessThan(mkt) || mkt.LessThan(ten) {
		t.Error("LessThan should be false when either side is MKT")
	}
}

func TestArithmeticFailsOnMarket(t *testing.T) {
	t.Parallel()
	ten := FromCents(1000)
	mkt := MKT()

	if _, err := ten.Add(mkt); err == nil {
		t.Error("Add with MKT operand should fail")
	}
	if _, err := mkt.Subtract(ten); err == nil {
		t.Error("Subtract from MKT should fail")
	}
	if _, err := mkt.MultiplyByInt(2); err == nil {
		t.Error("MultiplyByInt on MKT receiver should fail")
	}
}

func TestAddSubtractMultiply(t *testing.T) {
	t.Parallel()
	a := FromCents(1050)
	b := FromCents(250)

	sum, err := a.Add(b)
	if err != nil || sum.Cents() != 1300 {
		t.Errorf("Add = %v, %v, want 1300, nil", sum, err)
	}

	diff, err := a.Subtract(b)
	if err != nil || diff.Cents() != 800 {
		t.Errorf("Subtract = %v, %v, want 800, nil", diff, err)
	}

	prod, err := b.MultiplyByInt(4)
	if err != nil || prod.Cents() != 1000 {
		t.Errorf("MultiplyByInt = %v, %v, want 1000, nil", prod, err)
	}
}

func TestIsNegative(t *testing.T) {
	t.Parallel()
	if FromCents(-1).IsNegative() != true {
		t.Error("negative cents should report IsNegative true")
	}
	if MKT().IsNegative() != false {
		t.Error("MKT().IsNegative() should be false")
	}
}

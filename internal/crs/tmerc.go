package crs

import (
	"math"
)

const (
	utmScale           = 0.9996
	falseEasting       = 500000
	falseNorthingSouth = 10000000
	degToRad           = math.Pi / 180
	radToDeg           = 180 / math.Pi
)

// tmerc holds the Krüger series coefficients for one ellipsoid. Sixth order
// keeps the error well under a millimetre inside a UTM zone.
type tmerc struct {
	e     float64    // first eccentricity
	k0A   float64    // scale * rectifying radius
	alpha [6]float64 // forward series
	beta  [6]float64 // inverse series
}

func newTmerc(el Ellipsoid) tmerc {
	f := el.Flattening()
	n := f / (2 - f)
	n2 := n * n
	n3 := n2 * n
	n4 := n3 * n
	n5 := n4 * n
	n6 := n5 * n

	a := el.SemiMajor / (1 + n) * (1 + n2/4 + n4/64 + n6/256)

	return tmerc{
		e:   math.Sqrt(f * (2 - f)),
		k0A: utmScale * a,
		alpha: [6]float64{
			n/2 - 2*n2/3 + 5*n3/16 + 41*n4/180 - 127*n5/288 + 7891*n6/37800,
			13*n2/48 - 3*n3/5 + 557*n4/1440 + 281*n5/630 - 1983433*n6/1935360,
			61*n3/240 - 103*n4/140 + 15061*n5/26880 + 167603*n6/181440,
			49561*n4/161280 - 179*n5/168 + 6601661*n6/7257600,
			34729*n5/80640 - 3418889*n6/1995840,
			212378941 * n6 / 319334400,
		},
		beta: [6]float64{
			n/2 - 2*n2/3 + 37*n3/96 - n4/360 - 81*n5/512 + 96199*n6/604800,
			n2/48 + n3/15 - 437*n4/1440 + 46*n5/105 - 1118711*n6/3870720,
			17*n3/480 - 37*n4/840 - 209*n5/4480 + 5569*n6/90720,
			4397*n4/161280 - 11*n5/504 - 830251*n6/7257600,
			4583*n5/161280 - 108847*n6/3991680,
			20648693 * n6 / 638668800,
		},
	}
}

// forward projects geographic degrees onto the zone grid.
func (t tmerc) forward(s System, lon, lat float64) (x, y float64) {
	phi := lat * degToRad
	lambda := normalizeLon(lon-s.CentralMeridian()) * degToRad

	sinPhi := math.Sin(phi)
	tau := math.Sinh(math.Atanh(sinPhi) - t.e*math.Atanh(t.e*sinPhi))

	xiP := math.Atan2(tau, math.Cos(lambda))
	etaP := math.Atanh(math.Sin(lambda) / math.Sqrt(1+tau*tau))

	xi, eta := xiP, etaP
	for j, a := range t.alpha {
		k := 2 * float64(j+1)
		xi += a * math.Sin(k*xiP) * math.Cosh(k*etaP)
		eta += a * math.Cos(k*xiP) * math.Sinh(k*etaP)
	}

	x = falseEasting + t.k0A*eta
	y = t.k0A * xi
	if s.South {
		y += falseNorthingSouth
	}
	return x, y
}

// inverse converts zone grid coordinates back to geographic degrees.
func (t tmerc) inverse(s System, x, y float64) (lon, lat float64) {
	if s.South {
		y -= falseNorthingSouth
	}
	xi := y / t.k0A
	eta := (x - falseEasting) / t.k0A

	xiP, etaP := xi, eta
	for j, b := range t.beta {
		k := 2 * float64(j+1)
		xiP -= b * math.Sin(k*xi) * math.Cosh(k*eta)
		etaP -= b * math.Cos(k*xi) * math.Sinh(k*eta)
	}

	sinhEta := math.Sinh(etaP)
	cosXi := math.Cos(xiP)
	tauP := math.Sin(xiP) / math.Hypot(sinhEta, cosXi)
	lambda := math.Atan2(sinhEta, cosXi)

	tau := t.conformalToGeodetic(tauP)

	lat = math.Atan(tau) * radToDeg
	lon = normalizeLon(lambda*radToDeg + s.CentralMeridian())
	return lon, lat
}

// conformalToGeodetic solves tan(phi) from tan(conformal latitude) by Newton
// iteration; it converges in two or three steps for terrestrial latitudes.
func (t tmerc) conformalToGeodetic(tauP float64) float64 {
	e2 := t.e * t.e
	tau := tauP
	for i := 0; i < 10; i++ {
		sqrt1Tau := math.Sqrt(1 + tau*tau)
		sigma := math.Sinh(t.e * math.Atanh(t.e*tau/sqrt1Tau))
		tauI := tau*math.Sqrt(1+sigma*sigma) - sigma*sqrt1Tau
		delta := (tauP - tauI) / math.Sqrt(1+tauI*tauI) *
			(1 + (1-e2)*tau*tau) / ((1 - e2) * sqrt1Tau)
		tau += delta
		if math.Abs(delta) < 1e-14 {
			break
		}
	}
	return tau
}

func normalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

/*
Command synthlamp writes synthetic arc lamp spectra and a matching atlas.

Usage

  synthlamp [options]   Write an atlas and lamp spectra.
  synthlamp -v          Display version and copyright.

Output

The output directory receives lamp.atlas, a line list with unevenly
spaced wavelengths covering the detector, and arc01.txt, arc02.txt and so
on, spectra in the text format read by specred.  Every other atlas line is
lit as a Voigt profile on a sloping continuum with Gaussian noise.  The
zero point of the dispersion grows by -drift from one spectrum to the
next and exposures are an hour apart, so

  synthlamp -o night1
  specred calib night1/lamp.atlas night1/arc*.txt

with guess = 6300, .5 in specred.config recovers the drift.  The noise is
repeatable for a given -seed.
*/
package main

/*
Command specred reduces arc lamp and object spectra: it calibrates the
wavelength scale of lamp exposures and maintains a template of prior line
parameters from line measurements of many observations.

Contents

  Program overview
  Command line usage
  Configuration
  File formats
  Algorithm outline


Program overview

There are two subcommands.

calib takes an atlas of known lamp wavelengths and a list of lamp
spectra, usually one night's exposures in one directory.  For each
spectrum it extracts emission lines, matches them to the atlas and fits a
dispersion polynomial giving wavelength as a function of pixel.  The
solutions of all spectra form a table ordered by observation time.
Solutions inconsistent with their neighbours in time are flagged.  The
table is stored under the name of the directory and printed, one line per
spectrum.

priors takes a baseline template of line parameters and a table of
measurements, each measurement being the center, equivalent width,
Gaussian width and Lorentzian width of one line as fit in one
observation.  Measurements are grouped by the kinematic path of the light
(for example sun-object-earth, or just earth for telluric lines),
filtered by fit quality, and reduced to robust statistics per group and
line.  The result is a new template, written as JSON, where each parameter
either has an opinion (a value and limits from the data) or is left as in
the baseline.

Measurements given to priors are added to the store, so later runs can
omit the measurement file and work from everything stored so far.

The synthlamp command, in the synthlamp directory, writes synthetic lamp
spectra and a matching atlas for trying out calib.


Command line usage

  Usage: specred [options] calib <atlas> <spectrum>...   calibrate lamp spectra
         specred [options] priors <baseline.json> [<measurements.json>]
                                                       update line priors
         specred -h                                    display help
         specred -v                                    display version

  Options:
         -c <config-file>     default specred.config
         -d <store-file>      default specred.db
         -o <template-file>   default prior.json
         -dir <table-name>    default: directory of the first spectrum
         -debug               log debug messages

A configuration file is required to be present if -c is used.  Without
-c, specred.config in the current directory is used if present, otherwise
defaults apply.

With interactive = true in the configuration, processing stops after each
step and waits for a command on standard input:

  n, next       accept and go on
  p, previous   go back one step
  r, run        accept this and everything after without asking
  q, quit       stop, keeping what is done so far

For priors a step is one line of one group; going back reprocesses the
previous step.  For calib a step is one spectrum of the collected table;
quitting stores only the spectra accepted.  Either way output is written
only on completion or quit.


Configuration

The configuration file is a text file.  Empty lines and lines beginning
with # are ignored.  Other lines have the form

  keyword = value

Keywords and defaults:

  min_good_samples         5      fewest surviving measurements for an opinion
  chi2_cut                 10     largest reduced chi-square of a fit
  doppler_cut              .5     largest Doppler residual plus its error
  separation_cut           .2     smallest offset to a neighbouring line
  close_to_bound_fraction  .01    of the limit range counted as on a bound
  generic_object           true   group paths ignore the object name
  fit_order                2      degree of the dispersion polynomial
  continuum_degree         1      degree of the extraction continuum
  expected_line_fraction   .5     of atlas lines expected in a spectrum
  outlier_cut              3      association and table rejection cut
  max_iterations           200    of each nonlinear fit
  width_fixed              false,false  Gaussian, Lorentzian widths fixed
  initial_width            2      Gaussian FWHM of a new line, pixels
  max_width                8      largest line width, pixels
  anchor_window            5      wavelength search window of the anchor
  neighbor_window          2      table neighbours either side
  keep_flagged             false  store flagged solutions
  guess                           initial dispersion coefficients
  workers                  0      concurrent spectra, 0 for all CPUs
  interactive              false
  plot_dir                        directory for diagnostic plots
  log_json                 false  log as JSON rather than text

An unrecognized keyword is an error.


File formats

A spectrum file is text.  Lines of the form "# KEY = value" are header
cards.  DATE-OBS (YYYY-MM-DD or YYYY-MM-DDThh:mm:ss) is required.  UT
(hh:mm:ss) gives the time when DATE-OBS has none.  REFPIX is the optical
center in pixels, by default the middle of the spectrum.  Other lines
beginning with # are comments.  Remaining lines hold one intensity each.
Leading and trailing zero, NaN or infinite samples are padding and are
ignored.

An atlas file lists one wavelength per line.  Empty lines and lines
beginning with # are ignored.

Templates and measurement tables are JSON.  A template holds a list of
lines, each with rest wavelength, kinematic path and object name, and a
list of parameters, four per line (center, eqwidth, gwidth, lwidth)
followed by any global parameters such as continuum.  A parameter has a
value, lower and upper limits with flags saying which apply, a fixed flag
and a status: -1 inactive, 0 no opinion, 1 active.

The store is a sqlite database holding templates by name, measurements by
file and line, and calibration tables by directory.

With plot_dir set, calib writes for each spectrum <name>_lines.png with
the extracted lines over the data, <name>_assoc.png with the residuals of
the dispersion fit, and for the directory <dir>_coeffs.html charting each
coefficient against time.


Algorithm outline

Extraction.  The spectrum is trimmed of padding and a continuum polynomial
is fit.  Lines are then added one at a time, each started at the highest
point of the residual, and all lines and the continuum are refit jointly
with a Voigt profile per line.  Adding stops when a new line does not
reduce the reduced chi-square, in which case it is discarded, or when the
expected number of lines is reached.  The expected number is the number of
atlas lines the initial guess places on the detector times
expected_line_fraction.  A final fit releases all limits.

Association.  Line centers are converted to wavelengths with the guess.
Each pairing of a line with an atlas line within anchor_window defines a
shift of the zero point; the shift under which all lines best find
distinct atlas lines is taken.  Lines and atlas lines are then paired one
to one, closest pair first.  Pairs with a residual more than outlier_cut
mean absolute deviations above the median residual are rejected, and the
dispersion polynomial is fit to the rest.

Table.  Each coefficient of each solution is compared with the median of
that coefficient over neighbor_window solutions either side in time.  A
difference over outlier_cut robust spreads flags the solution.

Priors.  For each group and line, measurements pass a chain of filters:
reduced chi-square, Doppler residual, separation from neighbouring lines,
then for each parameter, distance from the baseline limits.  The Doppler
and bound filters are skipped if they would leave too few measurements.
A parameter with at least min_good_samples survivors becomes active with
the median as value and the median plus or minus the standard deviation as
limits.  Line centers are reported but never updated.  When the last line
of a group is done, widths are pooled across the group's lines.  Lines of
the observed object get Lorentzian width zero and fixed widths.

-------------
Public domain.
*/
package main
